package ui

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/guildledger/ledgerboard/internal/ledger"
)

func TestFormatCurrencySignClasses(t *testing.T) {
	cases := []struct {
		in        any
		text      string
		magnitude string
		class     string
	}{
		{100, "100 ISK", "100", ClassPositive},
		{-2500.4, "-2,500 ISK", "2,500", ClassNegative},
		{0, "0 ISK", "0", ""},
		{1234567.5, "1,234,568 ISK", "1,234,568", ClassPositive},
		{-0.5, "-1 ISK", "1", ClassNegative},
		{0.4, "0 ISK", "0", ClassPositive},
		{ledger.Amount(42), "42 ISK", "42", ClassPositive},
		{"1500.2", "1,500 ISK", "1,500", ClassPositive},
		{json.Number("-7"), "-7 ISK", "7", ClassNegative},
		{decimal.NewFromInt(9), "9 ISK", "9", ClassPositive},
	}
	for _, tc := range cases {
		got := FormatCurrency(tc.in)
		assert.Equal(t, tc.text, got.Text, "%v", tc.in)
		assert.Equal(t, tc.magnitude, got.Magnitude, "%v", tc.in)
		assert.Equal(t, tc.class, got.Class, "%v", tc.in)
	}
}

func TestFormatCurrencyCoercesGarbageToZero(t *testing.T) {
	for _, in := range []any{nil, "abc", "", true, struct{}{}, math.NaN(), math.Inf(1), []int{1}} {
		got := FormatCurrency(in)
		assert.Equal(t, "0 ISK", got.Text, "%v", in)
		assert.Empty(t, got.Class, "%v", in)
	}
}

func TestFormatterLocale(t *testing.T) {
	de := NewFormatter("de-DE", "ISK")
	assert.Equal(t, "1.234.568 ISK", de.Currency(1234567.8).Text)

	fallback := NewFormatter("not a locale!", "")
	assert.Equal(t, "1,000", fallback.Currency(1000).Text)
}

func TestMoneyHTML(t *testing.T) {
	assert.Equal(t, `<span class="positive">100 ISK</span>`, string(FormatCurrency(100).HTML()))
	assert.Equal(t, `<span>0 ISK</span>`, string(FormatCurrency(0).HTML()))
}

func TestFormatCurrencyBeyondInt64(t *testing.T) {
	got := FormatCurrency(1e19)
	assert.Equal(t, "10,000,000,000,000,000,000 ISK", got.Text)
	assert.Equal(t, ClassPositive, got.Class)

	got = FormatCurrency(-1e20)
	assert.Equal(t, "-100,000,000,000,000,000,000 ISK", got.Text)
	assert.Equal(t, "100,000,000,000,000,000,000", got.Magnitude)
	assert.Equal(t, ClassNegative, got.Class)

	de := NewFormatter("de-DE", "ISK")
	assert.Equal(t, "10.000.000.000.000.000.000 ISK", de.Currency(1e19).Text)
}
