package dashboard

import (
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"sync"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/backend"
	"github.com/guildledger/ledgerboard/internal/ledger/chart"
	"github.com/guildledger/ledgerboard/internal/ledger/ui"
)

// PanelID names one independently loading dashboard region.
type PanelID string

const (
	MonthTable  PanelID = "month-table"
	YearTable   PanelID = "year-table"
	MonthCharts PanelID = "month-charts"
	YearCharts  PanelID = "year-charts"
)

// PanelIDs lists every panel in render order.
var PanelIDs = []PanelID{MonthTable, YearTable, MonthCharts, YearCharts}

// ParsePanelID validates a panel name.
func ParsePanelID(raw string) (PanelID, bool) {
	for _, id := range PanelIDs {
		if string(id) == raw {
			return id, true
		}
	}
	return "", false
}

// IsTable reports whether the panel renders a grid rather than charts.
func (id PanelID) IsTable() bool {
	return id == MonthTable || id == YearTable
}

// View returns the backend view the panel requests for a selection. Month
// panels follow a day selection, year panels always request the whole year.
func (id PanelID) View(sel ledger.Selection) ledger.ViewMode {
	if id == YearTable || id == YearCharts {
		return ledger.ViewYear
	}
	if sel.View == ledger.ViewDay {
		return ledger.ViewDay
	}
	return ledger.ViewMonth
}

// State is the panel lifecycle position.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateRendered
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRendered:
		return "rendered"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Panel failure messages.
const (
	MessagePermission = "You don't have permission to view this data"
	MessageNotFound   = "No data found"
	MessageGeneric    = "An error occurred while loading data"
)

// MessageFor maps a failure category to the inline panel message.
func MessageFor(cat backend.Category) string {
	switch cat {
	case backend.CategoryNone, backend.CategoryClientFormat:
		return ""
	case backend.CategoryPermission:
		return MessagePermission
	case backend.CategoryNotFound:
		return MessageNotFound
	default:
		return MessageGeneric
	}
}

// Result is a successful panel fetch.
type Result struct {
	Records   []ledger.Record
	Totals    ledger.Totals
	Billboard map[string]ledger.ChartPayload
}

// Panel owns one region's grid and chart registry. Results are applied only
// for the generation that requested them.
type Panel struct {
	ID PanelID

	mu       sync.Mutex
	state    State
	gen      uint64
	grid     *ui.Grid
	charts   *chart.Registry
	slots    []string
	category backend.Category
	message  string
	columns  ui.ColumnSet
	logger   *slog.Logger
}

func newPanel(id PanelID, cols ui.ColumnSet, logger *slog.Logger) *Panel {
	return &Panel{
		ID:      id,
		charts:  chart.NewRegistry(),
		columns: cols,
		logger:  logger.With(slog.String("panel", string(id))),
	}
}

// Begin drops the rendered grid and chart slots, moves the panel to Loading
// and returns the new generation. Chart instances stay registered so the next
// result updates them in place.
func (p *Panel) Begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grid = nil
	p.slots = nil
	p.category = backend.CategoryNone
	p.message = ""
	p.state = StateLoading
	p.gen++
	return p.gen
}

// Generation returns the current generation.
func (p *Panel) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// State returns the lifecycle state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Render applies a successful result. It returns false when gen is stale.
func (p *Panel) Render(gen uint64, res Result, opts ui.GridOptions, view GridView) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		p.logger.Info("discarding stale panel result", slog.Uint64("gen", gen), slog.Uint64("current", p.gen))
		return false
	}

	if p.ID.IsTable() {
		grid := ui.BuildGrid(p.columns, res.Records, res.Totals, opts)
		if view.SortKey != "" {
			grid.Sort(view.SortKey, view.Desc)
		}
		grid.Filter(view.Query)
		p.grid = grid
	} else {
		p.slots = p.slots[:0]
		keys := make([]string, 0, len(res.Billboard))
		for slot := range res.Billboard {
			keys = append(keys, slot)
		}
		sort.Strings(keys)
		live := make(map[string]bool, len(keys))
		for _, slot := range keys {
			live[p.containerID(slot)] = true
		}
		for _, inst := range p.charts.Instances() {
			if !live[inst.ID] {
				p.charts.Dispose(inst.ID)
			}
		}
		for _, slot := range keys {
			payload := res.Billboard[slot]
			containerID := p.containerID(slot)
			p.slots = append(p.slots, slot)
			if _, err := p.charts.Render(containerID, &payload, chart.KindForSlot(slot)); err != nil {
				p.logger.Warn("chart hidden", slog.String("slot", slot), slog.Any("error", err))
			}
		}
	}
	p.state = StateRendered
	return true
}

// Fail records a failure. It returns false when gen is stale.
func (p *Panel) Fail(gen uint64, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		p.logger.Info("discarding stale panel failure", slog.Uint64("gen", gen), slog.Uint64("current", p.gen), slog.Any("error", err))
		return false
	}
	p.charts.DisposeAll()
	p.category = backend.Classify(err)
	p.message = MessageFor(p.category)
	p.state = StateErrored
	p.logger.Warn("panel failed", slog.String("category", p.category.String()), slog.Any("error", err))
	return true
}

// Category returns the failure class of the last applied failure.
func (p *Panel) Category() backend.Category {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.category
}

// Grid returns the rendered grid, nil unless a table panel is Rendered.
func (p *Panel) Grid() *ui.Grid {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grid
}

// Charts exposes the panel's chart registry.
func (p *Panel) Charts() *chart.Registry {
	return p.charts
}

func (p *Panel) containerID(slot string) string {
	return string(p.ID) + "-" + slot
}

// ChartView is one chart slot ready for a template.
type ChartView struct {
	ID     string
	Slot   string
	Kind   chart.Kind
	Title  string
	SVG    template.HTML
	Hidden bool
}

// PanelView is a consistent snapshot of a panel for templates.
type PanelView struct {
	ID         PanelID
	Table      bool
	State      string
	Generation uint64
	Loading    bool
	Errored    bool
	Hidden     bool
	Message    string
	Columns    []ui.Column
	Rows       []ui.Row
	Footer     []ui.FooterCell
	SortKey    string
	Desc       bool
	Charts     []ChartView
}

// Snapshot captures the panel for rendering.
func (p *Panel) Snapshot() PanelView {
	p.mu.Lock()
	defer p.mu.Unlock()
	view := PanelView{
		ID:         p.ID,
		Table:      p.ID.IsTable(),
		State:      p.state.String(),
		Generation: p.gen,
		Loading:    p.state == StateLoading,
		Errored:    p.state == StateErrored,
		Hidden:     p.category == backend.CategoryClientFormat,
		Message:    p.message,
		Columns:    p.columns.Columns,
	}
	if p.grid != nil {
		view.Rows = p.grid.Rows()
		view.Footer = p.grid.Footer
		view.SortKey, view.Desc = p.grid.SortState()
	}
	for _, slot := range p.slots {
		id := p.containerID(slot)
		cv := ChartView{ID: id, Slot: slot, Kind: chart.KindForSlot(slot), Hidden: p.charts.Hidden(id)}
		if inst, ok := p.charts.Get(id); ok {
			cv.Title = inst.Title
			cv.SVG = inst.SVG
			cv.Kind = inst.Kind
		}
		view.Charts = append(view.Charts, cv)
	}
	return view
}
