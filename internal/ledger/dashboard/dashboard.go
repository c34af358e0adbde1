// Package dashboard orchestrates the ledger panels of one entity: it turns
// the selection into backend requests, fans them out and routes each result
// to the panel that asked for it.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/backend"
	"github.com/guildledger/ledgerboard/internal/ledger/ui"
)

// Fetcher is the backend surface the dashboard reads from.
type Fetcher interface {
	Ledger(ctx context.Context, req ledger.Request) (ledger.LedgerPayload, error)
	Billboard(ctx context.Context, req ledger.Request) (ledger.BillboardPayload, error)
}

// DetailDialog is the modal id row actions open.
const DetailDialog = "ledger-detail"

// GridView carries the table presentation state shared by both grids.
type GridView struct {
	SortKey string
	Desc    bool
	Query   string
}

// Options configures a dashboard.
type Options struct {
	Logger    *slog.Logger
	Formatter *ui.Formatter
	Avatars   ui.Avatars
	// Observe, when set, receives every non-stale panel outcome: "ok" or
	// the failure category.
	Observe func(panel PanelID, outcome string)
}

// Dashboard holds the selection and the four panels of one entity ledger.
type Dashboard struct {
	fetcher Fetcher
	logger  *slog.Logger
	format  *ui.Formatter
	avatars ui.Avatars
	observe func(PanelID, string)

	mu               sync.Mutex
	selection        ledger.Selection
	grid             GridView
	controlsDisabled bool
	panels           map[PanelID]*Panel
}

// New builds a dashboard for the selection. Column sets are resolved once
// here from the entity type.
func New(sel ledger.Selection, fetcher Fetcher, opts Options) *Dashboard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("entity", string(sel.Entity)), slog.Int64("pk", sel.EntityPK))
	cols := ui.ColumnsFor(sel.Entity)
	d := &Dashboard{
		fetcher:   fetcher,
		logger:    logger,
		format:    opts.Formatter,
		avatars:   opts.Avatars,
		observe:   opts.Observe,
		selection: sel,
		panels:    make(map[PanelID]*Panel, len(PanelIDs)),
	}
	for _, id := range PanelIDs {
		d.panels[id] = newPanel(id, cols, logger)
	}
	return d
}

// Selection returns a copy of the current selection.
func (d *Dashboard) Selection() ledger.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection
}

// Update mutates the selection under the dashboard lock.
func (d *Dashboard) Update(fn func(*ledger.Selection)) ledger.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.selection)
	return d.selection
}

// SetGridView changes sorting and search for the table panels.
func (d *Dashboard) SetGridView(view GridView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grid = view
}

// GridView returns the table presentation state.
func (d *Dashboard) GridView() GridView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.grid
}

// ControlsDisabled reports whether a permission failure locked the filter
// and administration controls.
func (d *Dashboard) ControlsDisabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.controlsDisabled
}

// Panel returns a panel by id.
func (d *Dashboard) Panel(id PanelID) (*Panel, bool) {
	p, ok := d.panels[id]
	return p, ok
}

// Reset unlocks the controls and moves every panel to Loading without
// fetching. Results still in flight for earlier generations are discarded.
func (d *Dashboard) Reset() map[PanelID]uint64 {
	d.mu.Lock()
	d.controlsDisabled = false
	d.mu.Unlock()

	gens := make(map[PanelID]uint64, len(PanelIDs))
	for _, id := range PanelIDs {
		gens[id] = d.panels[id].Begin()
	}
	return gens
}

// Refresh begins every panel and loads them concurrently. A failing panel
// never affects its siblings.
func (d *Dashboard) Refresh(ctx context.Context) {
	gens := d.Reset()

	var g errgroup.Group
	for _, id := range PanelIDs {
		id := id
		g.Go(func() error {
			d.load(ctx, d.panels[id], gens[id])
			return nil
		})
	}
	_ = g.Wait()
}

// RefreshPanel re-triggers one panel.
func (d *Dashboard) RefreshPanel(ctx context.Context, id PanelID) error {
	p, ok := d.panels[id]
	if !ok {
		return fmt.Errorf("dashboard: unknown panel %q", id)
	}
	d.load(ctx, p, p.Begin())
	return nil
}

func (d *Dashboard) load(ctx context.Context, p *Panel, gen uint64) {
	sel := d.Selection()
	view := p.ID.View(sel)

	var (
		res Result
		err error
	)
	if p.ID.IsTable() {
		var payload ledger.LedgerPayload
		payload, err = d.fetcher.Ledger(ctx, sel.LedgerRequest(view))
		res = Result{Records: payload.Ratting, Totals: payload.Total}
	} else {
		var payload ledger.BillboardPayload
		payload, err = d.fetcher.Billboard(ctx, sel.BillboardRequest(view))
		res = Result{Billboard: payload.Billboard}
	}
	if err != nil {
		if !p.Fail(gen, err) {
			return
		}
		cat := backend.Classify(err)
		d.report(p.ID, cat.String())
		if cat == backend.CategoryPermission {
			d.mu.Lock()
			d.controlsDisabled = true
			d.mu.Unlock()
		}
		return
	}
	if p.Render(gen, res, d.gridOptions(sel, view), d.GridView()) {
		d.report(p.ID, "ok")
	}
}

func (d *Dashboard) report(id PanelID, outcome string) {
	if d.observe != nil {
		d.observe(id, outcome)
	}
}

func (d *Dashboard) gridOptions(sel ledger.Selection, view ledger.ViewMode) ui.GridOptions {
	return ui.GridOptions{
		Formatter: d.format,
		Avatars:   d.avatars,
		Action: func(rec ledger.Record) *ui.ModalTrigger {
			if rec.MainID <= 0 {
				return nil
			}
			return &ui.ModalTrigger{
				Dialog:  DetailDialog,
				Label:   "Details",
				Href:    DetailHref(sel, view, rec.MainID),
				Request: sel.DetailRequest(view, rec.MainID),
			}
		},
	}
}

// BasePath is the served dashboard path of a selection.
func BasePath(sel ledger.Selection) string {
	return fmt.Sprintf("/ledger/%s/%d/", sel.Entity, sel.EntityPK)
}

// Query encodes the selection filters as dashboard query parameters.
func Query(sel ledger.Selection) url.Values {
	q := url.Values{}
	q.Set("year", strconv.Itoa(sel.Year))
	q.Set("month", strconv.Itoa(sel.Month))
	q.Set("day", strconv.Itoa(sel.Day))
	q.Set("view", string(sel.View))
	return q
}

// DetailHref is the served detail modal URL for a row.
func DetailHref(sel ledger.Selection, view ledger.ViewMode, rowID int64) string {
	q := Query(sel)
	q.Set("view", string(view))
	return fmt.Sprintf("%sdetail/%d?%s", BasePath(sel), rowID, q.Encode())
}

// View is a consistent snapshot of the whole dashboard.
type View struct {
	Selection        ledger.Selection
	Labels           ledger.Labels
	Days             []int
	BasePath         string
	Query            string
	ControlsDisabled bool
	Grid             GridView
	Panels           []PanelView
}

// Snapshot captures the dashboard for rendering.
func (d *Dashboard) Snapshot() View {
	d.mu.Lock()
	sel := d.selection
	grid := d.grid
	disabled := d.controlsDisabled
	d.mu.Unlock()

	view := View{
		Selection:        sel,
		Labels:           sel.Labels(),
		Days:             sel.DayList(),
		BasePath:         BasePath(sel),
		Query:            Query(sel).Encode(),
		ControlsDisabled: disabled,
		Grid:             grid,
	}
	for _, id := range PanelIDs {
		view.Panels = append(view.Panels, d.panels[id].Snapshot())
	}
	return view
}
