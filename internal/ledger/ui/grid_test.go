package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildledger/ledgerboard/internal/ledger"
)

func sampleRecords() []ledger.Record {
	return []ledger.Record{
		{MainID: 1, MainName: "alpha", EntityType: "character", Bounty: 900, ESS: 10, Total: 910},
		{MainID: 2, MainName: "Bravo", EntityType: "character", Bounty: 10000, ESS: 5, Total: 10005},
		{MainID: 3, MainName: "charlie", EntityType: "character", Bounty: -50, Total: -50},
	}
}

func TestColumnsForEntityType(t *testing.T) {
	char := ColumnsFor(ledger.EntityCharacter)
	assert.True(t, char.Has("mining"))
	assert.True(t, char.Has("costs"))

	for _, et := range []ledger.EntityType{ledger.EntityCorporation, ledger.EntityAlliance} {
		cols := ColumnsFor(et)
		assert.False(t, cols.Has("mining"), et)
		assert.False(t, cols.Has("costs"), et)
		assert.True(t, cols.Has("ess"), et)
		assert.Equal(t, ColumnActions, cols.Columns[len(cols.Columns)-1].Key)
	}
	assert.Len(t, ColumnsFor(ledger.EntityAccount).Currency(), 6)
}

func TestGridSortsOnRawValues(t *testing.T) {
	grid := BuildGrid(ColumnsFor(ledger.EntityCharacter), sampleRecords(), nil, GridOptions{})

	require.True(t, grid.Sort("bounty", true))
	rows := grid.Rows()
	// "900 ISK" sorts after "10,000 ISK" as text; raw values must win.
	assert.Equal(t, []string{"Bravo", "alpha", "charlie"}, names(rows))

	require.True(t, grid.Sort("bounty", false))
	assert.Equal(t, []string{"charlie", "alpha", "Bravo"}, names(grid.Rows()))

	require.True(t, grid.Sort("name", false))
	assert.Equal(t, []string{"alpha", "Bravo", "charlie"}, names(grid.Rows()))

	assert.False(t, grid.Sort(ColumnActions, false))
	assert.False(t, grid.Sort("nope", false))
	key, desc := grid.SortState()
	assert.Equal(t, "name", key)
	assert.False(t, desc)
}

func TestGridFilterKeepsFooterFromTotals(t *testing.T) {
	totals := ledger.Totals{ledger.FieldBounty: 10850, ledger.FieldTotal: 10865}
	grid := BuildGrid(ColumnsFor(ledger.EntityCorporation), sampleRecords(), totals, GridOptions{})

	grid.Filter("BRA")
	require.Len(t, grid.Rows(), 1)
	assert.Equal(t, 3, grid.Len())

	footer := map[string]FooterCell{}
	for _, cell := range grid.Footer {
		footer[cell.Key] = cell
	}
	assert.Equal(t, "10,850 ISK", footer["bounty"].Text)
	assert.Equal(t, ClassPositive, footer["bounty"].Class)
	assert.Equal(t, "0 ISK", footer["ess"].Text, "missing totals render as zero")
	assert.NotContains(t, footer, "mining")
}

func TestGridEmptyFooterRendersBlank(t *testing.T) {
	totals := ledger.Totals{ledger.FieldBounty: 0}
	grid := BuildGrid(ColumnsFor(ledger.EntityCharacter), []ledger.Record{}, totals, GridOptions{})
	require.Len(t, grid.Footer, 6)
	for _, cell := range grid.Footer {
		assert.Equal(t, "", cell.Text, cell.Key)
		assert.Equal(t, "", cell.Class, cell.Key)
	}
}

func TestGridCellsAndAction(t *testing.T) {
	sel := ledger.Selection{Year: 2024, Month: 3, Day: 1, View: ledger.ViewMonth, Entity: ledger.EntityCharacter, EntityPK: 123}
	grid := BuildGrid(ColumnsFor(ledger.EntityCharacter), []ledger.Record{
		{MainID: 0, MainName: "Ghost", EntityType: "character", Bounty: 100},
	}, nil, GridOptions{Action: func(rec ledger.Record) *ModalTrigger {
		return &ModalTrigger{Dialog: "detail", Label: "Details", Request: sel.DetailRequest(sel.View, rec.MainID)}
	}})
	row := grid.Rows()[0]
	assert.Equal(t, DefaultAvatars.Placeholder, row.Cells[0].Avatar)
	assert.Equal(t, "100 ISK", row.Cells[1].Text)
	assert.Equal(t, 100.0, row.Cells[1].Sort)
	action := row.Cells[len(row.Cells)-1].Action
	require.NotNil(t, action)
	assert.Equal(t, "/ledger/api/character/123/0/ledger/template/date/2024-3-1/view/month/", action.Request.Path)
}

func TestGridExportSkipsExcludedColumn(t *testing.T) {
	grid := BuildGrid(ColumnsFor(ledger.EntityAlliance), sampleRecords(), nil, GridOptions{})
	grid.Sort("total", true)
	grid.Filter("a")
	records := grid.Export(ColumnActions)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Name", "Bounty", "ESS", "Miscellaneous", "Total"}, records[0])
	assert.Equal(t, []string{"Bravo", "10,000 ISK", "5 ISK", "0 ISK", "10,005 ISK"}, records[1])
}

func TestAvatarURLs(t *testing.T) {
	a := Avatars{Base: "https://img.example/", Placeholder: "/p.svg", Size: 64}
	assert.Equal(t, "https://img.example/characters/9/portrait?size=64", a.URL("character", 9))
	assert.Equal(t, "https://img.example/corporations/9/logo?size=64", a.URL("Corporation", 9))
	assert.Equal(t, "https://img.example/alliances/9/logo?size=64", a.URL("alliance", 9))
	assert.Equal(t, "/p.svg", a.URL("planet", 9))
	assert.Equal(t, "/p.svg", a.URL("character", 0))
}

func names(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Name)
	}
	return out
}
