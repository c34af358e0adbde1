package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year, month, want int
	}{
		{2024, 2, 29},
		{2023, 2, 28},
		{1900, 2, 28},
		{2000, 2, 29},
		{2024, 1, 31},
		{2024, 4, 30},
		{2024, 12, 31},
		{2024, 13, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DaysInMonth(tc.year, tc.month), "%d-%02d", tc.year, tc.month)
	}
}

func TestDayListMatchesCalendar(t *testing.T) {
	for year := 2020; year <= 2025; year++ {
		for month := 1; month <= 12; month++ {
			sel := Selection{Year: year, Month: month, Day: 1}
			days := sel.DayList()
			require.Len(t, days, DaysInMonth(year, month))
			assert.Equal(t, 1, days[0])
			assert.Equal(t, len(days), days[len(days)-1])
		}
	}
}

func TestSetMonthClampsDay(t *testing.T) {
	sel := Selection{Year: 2023, Month: 1, Day: 31, View: ViewDay}
	sel.SetMonth(2)
	assert.Equal(t, 28, sel.Day)

	sel.SetYear(2024)
	assert.Equal(t, 28, sel.Day)

	sel.SetDay(29)
	assert.Equal(t, 29, sel.Day)

	sel.SetYear(2023)
	assert.Equal(t, 28, sel.Day)

	sel.SetDay(31)
	assert.Equal(t, 28, sel.Day, "out of range day ignored")

	sel.SetMonth(13)
	assert.Equal(t, 2, sel.Month)
}

func TestLedgerRequestPath(t *testing.T) {
	sel := Selection{Year: 2024, Month: 3, Day: 17, View: ViewMonth, Entity: EntityCharacter, EntityPK: 123}

	assert.Equal(t, "GET /ledger/api/character/123/ledger/date/2024-3-1/view/month/", sel.LedgerRequest(ViewMonth).String())
	assert.Equal(t, "/ledger/api/character/123/ledger/date/2024-1-1/view/year/", sel.LedgerRequest(ViewYear).Path)
	assert.Equal(t, "/ledger/api/character/123/ledger/date/2024-3-17/view/day/", sel.LedgerRequest(ViewDay).Path)
	assert.Equal(t, "/ledger/api/character/123/billboard/date/2024-3-1/view/month/", sel.BillboardRequest(ViewMonth).Path)
	assert.Equal(t, "/ledger/api/character/123/9001/ledger/template/date/2024-3-1/view/month/", sel.DetailRequest(ViewMonth, 9001).Path)
	assert.Equal(t, "/ledger/api/character/123/9001/ledger/details/date/2024-1-1/view/year/", sel.BreakdownRequest(ViewYear, 9001).Path)

	action := sel.ActionRequest("switch_alarm")
	assert.Equal(t, "POST", action.Method)
	assert.Equal(t, "/ledger/api/character/123/action/switch_alarm/", action.Path)
}

func TestNewSelectionAndLabels(t *testing.T) {
	sel := NewSelection(EntityCorporation, 98000001, time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, ViewMonth, sel.View)
	labels := sel.Labels()
	assert.Equal(t, "2024", labels.Year)
	assert.Equal(t, "February", labels.Month)
	assert.Equal(t, "29", labels.Day)
	assert.Equal(t, "Month", labels.View)
}

func TestParseTokens(t *testing.T) {
	et, err := ParseEntityType(" Alliance ")
	require.NoError(t, err)
	assert.Equal(t, EntityAlliance, et)
	_, err = ParseEntityType("planet")
	assert.Error(t, err)

	view, err := ParseViewMode("YEAR")
	require.NoError(t, err)
	assert.Equal(t, ViewYear, view)
	_, err = ParseViewMode("week")
	assert.Error(t, err)
}

func TestAmountDecodesTolerantly(t *testing.T) {
	raw := `{"main_id": 7, "main_name": "Foo", "total_amount": "1500.5", "total_amount_ess": null,
		"total_amount_mining": true, "total_amount_others": "abc", "total_amount_costs": -20, "total_amount_all": 1480}`
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Equal(t, 1500.5, rec.Bounty.Float())
	assert.Zero(t, rec.ESS.Float())
	assert.Zero(t, rec.Mining.Float())
	assert.Zero(t, rec.Misc.Float())
	assert.Equal(t, -20.0, rec.Costs.Float())
	assert.Equal(t, Amount(1480), rec.Value(FieldTotal))
	assert.Zero(t, rec.Value("unknown"))
}
