package ui

import (
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/guildledger/ledgerboard/internal/ledger"
)

// Sign classes attached to formatted amounts.
const (
	ClassPositive = "positive"
	ClassNegative = "negative"
)

// Money is a formatted amount ready for display.
type Money struct {
	Value     float64
	Text      string
	Magnitude string
	Class     string
}

// HTML renders the amount wrapped in its sign class.
func (m Money) HTML() template.HTML {
	if m.Class == "" {
		return template.HTML("<span>" + template.HTMLEscapeString(m.Text) + "</span>")
	}
	return template.HTML(fmt.Sprintf("<span class=\"%s\">%s</span>", m.Class, template.HTMLEscapeString(m.Text)))
}

// Formatter renders amounts with locale grouping and no decimals.
type Formatter struct {
	printer *message.Printer
	suffix  string
}

// NewFormatter builds a formatter for a BCP 47 locale; unknown locales fall
// back to English.
func NewFormatter(locale, suffix string) *Formatter {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag), suffix: strings.TrimSpace(suffix)}
}

var defaultFormatter = NewFormatter("en-US", "ISK")

// FormatCurrency formats v with the default English formatter.
func FormatCurrency(v any) Money {
	return defaultFormatter.Currency(v)
}

// Currency formats v. Non-numeric input renders as zero.
func (f *Formatter) Currency(v any) Money {
	if f == nil {
		f = defaultFormatter
	}
	value := Coerce(v)
	rounded := decimal.NewFromFloat(value).Round(0)
	m := Money{Value: value, Magnitude: f.integer(rounded.Abs())}
	m.Text = m.Magnitude
	if rounded.Sign() < 0 {
		m.Text = "-" + m.Magnitude
	}
	if f.suffix != "" {
		m.Text += " " + f.suffix
	}
	switch {
	case value > 0:
		m.Class = ClassPositive
	case value < 0:
		m.Class = ClassNegative
	}
	return m
}

var maxInt = decimal.NewFromInt(math.MaxInt64)

// integer groups a non-negative whole decimal. Values past int64 are grouped
// from their digit string with the locale's thousands separator.
func (f *Formatter) integer(d decimal.Decimal) string {
	if d.LessThanOrEqual(maxInt) {
		return f.printer.Sprintf("%d", d.IntPart())
	}
	digits := d.String()
	sep := f.separator()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (f *Formatter) separator() string {
	s := strings.TrimPrefix(f.printer.Sprintf("%d", 1000000), "1")
	if i := strings.Index(s, "000"); i > 0 {
		return s[:i]
	}
	return ","
}

// Coerce turns numeric-like input into a float64. Anything else, including
// NaN and infinities, yields zero.
func Coerce(v any) float64 {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint64:
		f = float64(val)
	case ledger.Amount:
		f = float64(val)
	case decimal.Decimal:
		f, _ = val.Float64()
	case json.Number:
		f = ledger.ParseNumber([]byte(val.String()))
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return 0
		}
		f, _ = d.Float64()
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
