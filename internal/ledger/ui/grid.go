package ui

import (
	"sort"
	"strings"

	"github.com/guildledger/ledgerboard/internal/ledger"
)

// ModalTrigger is the typed descriptor behind a row action button.
type ModalTrigger struct {
	Dialog  string
	Label   string
	Href    string
	Request ledger.Request
}

// Cell is one rendered grid cell. Sort and SortText hold the raw value used
// for ordering; Text is only ever displayed.
type Cell struct {
	Key      string
	Kind     ColumnKind
	Sort     float64
	SortText string
	Text     string
	Class    string
	Avatar   string
	Action   *ModalTrigger
}

// Row is one grid row.
type Row struct {
	ID    int64
	Name  string
	Cells []Cell
}

// FooterCell is one footer total.
type FooterCell struct {
	Key   string
	Text  string
	Class string
}

// GridOptions customises grid construction.
type GridOptions struct {
	Formatter *Formatter
	Avatars   Avatars
	// Action builds the row action; nil leaves the action cell empty.
	Action func(ledger.Record) *ModalTrigger
}

// Grid is a sortable, filterable ledger table.
type Grid struct {
	Columns ColumnSet
	Footer  []FooterCell

	rows    []Row
	visible []Row
	totals  ledger.Totals
	format  *Formatter
	sortKey string
	desc    bool
	query   string
}

// BuildGrid maps backend records onto the column set.
func BuildGrid(cols ColumnSet, records []ledger.Record, totals ledger.Totals, opts GridOptions) *Grid {
	format := opts.Formatter
	if format == nil {
		format = defaultFormatter
	}
	avatars := opts.Avatars
	if avatars.Base == "" {
		avatars = DefaultAvatars
	}
	g := &Grid{
		Columns: cols,
		rows:    make([]Row, 0, len(records)),
		totals:  totals,
		format:  format,
	}
	for _, rec := range records {
		row := Row{ID: rec.MainID, Name: rec.MainName, Cells: make([]Cell, 0, len(cols.Columns))}
		for _, col := range cols.Columns {
			cell := Cell{Key: col.Key, Kind: col.Kind}
			switch col.Kind {
			case KindName:
				cell.Text = rec.MainName
				cell.SortText = strings.ToLower(rec.MainName)
				cell.Avatar = avatars.URL(rec.EntityType, rec.MainID)
			case KindCurrency:
				money := format.Currency(rec.Value(col.Field))
				cell.Sort = money.Value
				cell.Text = money.Text
				cell.Class = money.Class
			case KindAction:
				if opts.Action != nil {
					cell.Action = opts.Action(rec)
				}
			}
			row.Cells = append(row.Cells, cell)
		}
		g.rows = append(g.rows, row)
	}
	g.Redraw()
	return g
}

// Len returns the number of rows before filtering.
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.rows)
}

// Rows returns the visible rows in display order.
func (g *Grid) Rows() []Row {
	if g == nil {
		return nil
	}
	return g.visible
}

// SortState reports the active sort column and direction.
func (g *Grid) SortState() (string, bool) {
	return g.sortKey, g.desc
}

// Query returns the active filter.
func (g *Grid) Query() string {
	return g.query
}

// Sort orders rows by the raw value of column key. Unknown keys and the
// action column are ignored and false is returned.
func (g *Grid) Sort(key string, desc bool) bool {
	col, ok := g.Columns.Lookup(key)
	if !ok || col.Kind == KindAction {
		return false
	}
	g.sortKey = key
	g.desc = desc
	g.Redraw()
	return true
}

// Filter restricts visible rows to names containing query.
func (g *Grid) Filter(query string) {
	g.query = strings.TrimSpace(query)
	g.Redraw()
}

// Redraw recomputes the visible rows and the footer.
func (g *Grid) Redraw() {
	needle := strings.ToLower(g.query)
	visible := make([]Row, 0, len(g.rows))
	for _, row := range g.rows {
		if needle != "" && !strings.Contains(strings.ToLower(row.Name), needle) {
			continue
		}
		visible = append(visible, row)
	}
	if idx := g.columnIndex(g.sortKey); idx >= 0 {
		desc := g.desc
		sort.SliceStable(visible, func(i, j int) bool {
			a, b := visible[i].Cells[idx], visible[j].Cells[idx]
			if a.Kind == KindName {
				if desc {
					return a.SortText > b.SortText
				}
				return a.SortText < b.SortText
			}
			if desc {
				return a.Sort > b.Sort
			}
			return a.Sort < b.Sort
		})
	}
	g.visible = visible
	g.Footer = g.footer()
}

// footer is derived from backend totals, never from the visible rows. An
// empty grid renders empty footer cells.
func (g *Grid) footer() []FooterCell {
	cols := g.Columns.Currency()
	out := make([]FooterCell, 0, len(cols))
	for _, col := range cols {
		cell := FooterCell{Key: col.Key}
		if len(g.rows) > 0 {
			money := g.format.Currency(g.totals[col.Field])
			cell.Text = money.Text
			cell.Class = money.Class
		}
		out = append(out, cell)
	}
	return out
}

func (g *Grid) columnIndex(key string) int {
	if key == "" {
		return -1
	}
	for i, col := range g.Columns.Columns {
		if col.Key == key {
			return i
		}
	}
	return -1
}

// Export renders the visible rows as plain text records, skipping the
// excluded column keys. The header row comes first.
func (g *Grid) Export(exclude ...string) [][]string {
	skip := make(map[string]bool, len(exclude))
	for _, key := range exclude {
		skip[key] = true
	}
	header := make([]string, 0, len(g.Columns.Columns))
	keep := make([]int, 0, len(g.Columns.Columns))
	for i, col := range g.Columns.Columns {
		if skip[col.Key] {
			continue
		}
		header = append(header, col.Title)
		keep = append(keep, i)
	}
	out := make([][]string, 0, len(g.visible)+1)
	out = append(out, header)
	for _, row := range g.visible {
		record := make([]string, 0, len(keep))
		for _, i := range keep {
			record = append(record, row.Cells[i].Text)
		}
		out = append(out, record)
	}
	return out
}
