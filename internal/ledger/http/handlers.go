package ledgerhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/backend"
	"github.com/guildledger/ledgerboard/internal/ledger/dashboard"
	"github.com/guildledger/ledgerboard/internal/ledger/export"
	"github.com/guildledger/ledgerboard/internal/ledger/modal"
	"github.com/guildledger/ledgerboard/internal/ledger/ui"
	"github.com/guildledger/ledgerboard/internal/platform/httpx"
	"github.com/guildledger/ledgerboard/internal/shared"
	"github.com/guildledger/ledgerboard/internal/view"
)

var actionRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// yearsBack is how many past years the year dropdown offers.
const yearsBack = 5

// Backend is the ledger API surface the handler consumes.
type Backend interface {
	dashboard.Fetcher
	modal.Fetcher
}

// CacheInvalidator drops cached backend payloads, inline or via the job queue.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// InvalidatorFunc adapts a function to CacheInvalidator.
type InvalidatorFunc func(ctx context.Context) error

// InvalidateCache calls f.
func (f InvalidatorFunc) InvalidateCache(ctx context.Context) error { return f(ctx) }

// Handler serves the ledger dashboard, its fragments and dialogs.
type Handler struct {
	logger      *slog.Logger
	backend     Backend
	templates   *view.Engine
	csrf        *shared.CSRFManager
	workspaces  *Workspaces
	invalidator CacheInvalidator
	validate    *validator.Validate
	csvPool     sync.Pool
	now         func() time.Time
}

// Options configures optional handler collaborators.
type Options struct {
	Formatter     *ui.Formatter
	Avatars       ui.Avatars
	WorkspaceTTL  time.Duration
	Invalidator   CacheInvalidator
	PanelObserver func(panel dashboard.PanelID, outcome string)
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(logger *slog.Logger, be Backend, templates *view.Engine, csrf *shared.CSRFManager, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:      logger,
		backend:     be,
		templates:   templates,
		csrf:        csrf,
		invalidator: opts.Invalidator,
		validate:    validator.New(),
		now:         time.Now,
	}
	h.workspaces = NewWorkspaces(opts.WorkspaceTTL, func(sel ledger.Selection) *Workspace {
		return &Workspace{
			Dashboard: dashboard.New(sel, be, dashboard.Options{
				Logger:    logger,
				Formatter: opts.Formatter,
				Avatars:   opts.Avatars,
				Observe:   opts.PanelObserver,
			}),
			Modals: modal.NewController(be, opts.Formatter, logger),
		}
	})
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type pageData struct {
	Dashboard dashboard.View
	Panels    []panelData
	Filters   filtersData
	Dialog    dialogData
}

type panelData struct {
	Panel     dashboard.PanelView
	BasePath  string
	Query     string
	GridQuery string
	Grid      dashboard.GridView
	Disabled  bool
	CSRFToken string
}

type filtersData struct {
	BasePath  string
	Query     string
	GridQuery string
	Labels    ledger.Labels
	Selection ledger.Selection
	Years     []int
	Months    []int
	Days      []int
	Views     []string
	Grid      dashboard.GridView
	Disabled  bool
	CSRFToken string
	Next      string
}

type dialogData struct {
	Dialog    modal.Dialog
	BasePath  string
	Query     string
	CSRFToken string
}

type daysData struct {
	BasePath string
	Query    string
	Days     []int
	Selected int
	Disabled bool
}

// workspace resolves the selection and the visitor's workspace, storing the
// selection and grid state on the dashboard.
func (h *Handler) workspace(r *http.Request) (*Workspace, ledger.Selection, filterForm, error) {
	sel, form, err := h.selection(r)
	if err != nil {
		return nil, ledger.Selection{}, filterForm{}, err
	}
	ws := h.workspaces.Get(shared.SessionKey(r.Context()), sel)
	ws.Dashboard.Update(func(s *ledger.Selection) { *s = sel })
	ws.Dashboard.SetGridView(form.gridView())
	return ws, sel, form, nil
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ws, _, form, err := h.workspace(r)
	if err != nil {
		h.handleFilterError(w, r, err)
		return
	}
	// Panels load through their fragments unless the full page is asked for.
	if form.Render == "full" {
		ws.Dashboard.Refresh(r.Context())
	} else {
		ws.Dashboard.Reset()
	}

	sess := shared.SessionFromContext(r.Context())
	csrfToken := h.csrfToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}

	snap := ws.Dashboard.Snapshot()
	data := pageData{
		Dashboard: snap,
		Filters:   h.filters(snap, csrfToken, r.URL.RequestURI()),
		Dialog:    dialogData{Dialog: modal.Dialog{ID: dashboard.DetailDialog}, BasePath: snap.BasePath, Query: snap.Query, CSRFToken: csrfToken},
	}
	for _, p := range snap.Panels {
		data.Panels = append(data.Panels, panelData{
			Panel:     p,
			BasePath:  snap.BasePath,
			Query:     snap.Query,
			GridQuery: gridQuery(snap.Query, snap.Grid),
			Grid:      snap.Grid,
			Disabled:  snap.ControlsDisabled,
			CSRFToken: csrfToken,
		})
	}

	viewData := view.TemplateData{
		Title:       fmt.Sprintf("Ledger · %s %d", snap.Selection.Entity, snap.Selection.EntityPK),
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/ledger/dashboard.html", viewData); err != nil {
		h.logError("render dashboard", err)
	}
}

func (h *Handler) filters(snap dashboard.View, csrfToken, next string) filtersData {
	current := h.now().UTC().Year()
	years := make([]int, 0, yearsBack+1)
	for y := current; y >= current-yearsBack; y-- {
		years = append(years, y)
	}
	if sel := snap.Selection.Year; sel > current || sel < current-yearsBack {
		years = append([]int{sel}, years...)
	}
	months := make([]int, 12)
	for i := range months {
		months[i] = i + 1
	}
	return filtersData{
		BasePath:  snap.BasePath,
		Query:     snap.Query,
		GridQuery: gridQuery(snap.Query, snap.Grid),
		Labels:    snap.Labels,
		Selection: snap.Selection,
		Years:     years,
		Months:    months,
		Days:      snap.Days,
		Views:     []string{string(ledger.ViewDay), string(ledger.ViewMonth), string(ledger.ViewYear)},
		Grid:      snap.Grid,
		Disabled:  snap.ControlsDisabled,
		CSRFToken: csrfToken,
		Next:      next,
	}
}

func (h *Handler) handlePanel(w http.ResponseWriter, r *http.Request) {
	id, ok := dashboard.ParsePanelID(chi.URLParam(r, "panel"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	ws, _, _, err := h.workspace(r)
	if err != nil {
		h.handleFilterError(w, r, err)
		return
	}
	if err := ws.Dashboard.RefreshPanel(r.Context(), id); err != nil {
		h.handleServerError(w, r, "refresh panel", err)
		return
	}
	panel, _ := ws.Dashboard.Panel(id)
	snap := ws.Dashboard.Snapshot()
	data := panelData{
		Panel:     panel.Snapshot(),
		BasePath:  snap.BasePath,
		Query:     snap.Query,
		GridQuery: gridQuery(snap.Query, snap.Grid),
		Grid:      snap.Grid,
		Disabled:  ws.Dashboard.ControlsDisabled(),
		CSRFToken: h.csrfToken(r.Context(), shared.SessionFromContext(r.Context())),
	}
	if err := h.templates.RenderPartial(w, http.StatusOK, "partials/ledger/panel.html", data); err != nil {
		h.logError("render panel", err)
	}
}

func (h *Handler) handleDays(w http.ResponseWriter, r *http.Request) {
	sel, _, err := h.selection(r)
	if err != nil {
		h.handleFilterError(w, r, err)
		return
	}
	data := daysData{
		BasePath: dashboard.BasePath(sel),
		Query:    dashboard.Query(sel).Encode(),
		Days:     sel.DayList(),
		Selected: sel.Day,
	}
	if err := h.templates.RenderPartial(w, http.StatusOK, "partials/ledger/days.html", data); err != nil {
		h.logError("render days", err)
	}
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	h.renderDialog(w, r, func(ctx context.Context, ws *Workspace, req ledger.Request) modal.Dialog {
		return ws.Modals.Open(ctx, dashboard.DetailDialog, req)
	}, ledger.Selection.DetailRequest)
}

func (h *Handler) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	h.renderDialog(w, r, func(ctx context.Context, ws *Workspace, req ledger.Request) modal.Dialog {
		return ws.Modals.Breakdown(ctx, dashboard.DetailDialog, req)
	}, ledger.Selection.BreakdownRequest)
}

func (h *Handler) renderDialog(w http.ResponseWriter, r *http.Request,
	open func(context.Context, *Workspace, ledger.Request) modal.Dialog,
	build func(ledger.Selection, ledger.ViewMode, int64) ledger.Request,
) {
	rowID, err := parseRowID(r)
	if err != nil {
		h.handleFilterError(w, r, err)
		return
	}
	ws, sel, _, err := h.workspace(r)
	if err != nil {
		h.handleFilterError(w, r, err)
		return
	}
	dialog := open(r.Context(), ws, build(sel, sel.View, rowID))
	h.writeDialog(w, r, http.StatusOK, sel, dialog)
}

func (h *Handler) writeDialog(w http.ResponseWriter, r *http.Request, status int, sel ledger.Selection, dialog modal.Dialog) {
	data := dialogData{
		Dialog:    dialog,
		BasePath:  dashboard.BasePath(sel),
		Query:     dashboard.Query(sel).Encode(),
		CSRFToken: h.csrfToken(r.Context(), shared.SessionFromContext(r.Context())),
	}
	if err := h.templates.RenderPartial(w, status, "partials/ledger/modal.html", data); err != nil {
		h.logError("render dialog", err)
	}
}

func (h *Handler) handleCloseModal(w http.ResponseWriter, r *http.Request) {
	ws, sel, _, err := h.workspace(r)
	if err != nil {
		h.handleFilterError(w, r, err)
		return
	}
	ws.Modals.Close(chi.URLParam(r, "dialog"))
	if isScripted(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, dashboardURL(sel), http.StatusSeeOther)
}

func (h *Handler) handleConfirmPrompt(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if !actionRegex.MatchString(action) {
		h.handleFilterError(w, r, validationError{field: "action"})
		return
	}
	ws, sel, _, err := h.workspace(r)
	if err != nil {
		h.handleFilterError(w, r, err)
		return
	}
	fields := hiddenFields(r.URL.Query())
	prompt := strings.TrimSpace(r.URL.Query().Get("prompt"))
	if prompt == "" {
		prompt = "Are you sure?"
	}
	dialog := ws.Modals.Prompt(confirmDialog(action), action, prompt, fields)
	h.writeDialog(w, r, http.StatusOK, sel, dialog)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if !actionRegex.MatchString(action) {
		h.handleFilterError(w, r, validationError{field: "action"})
		return
	}
	if err := r.ParseForm(); err != nil {
		h.handleFilterError(w, r, validationError{field: "form"})
		return
	}
	ws, sel, _, err := h.workspace(r)
	if err != nil {
		h.handleFilterError(w, r, err)
		return
	}
	prompt := strings.TrimSpace(r.PostForm.Get("prompt"))
	dialog, ok := ws.Modals.Confirm(r.Context(), confirmDialog(action), sel.ActionRequest(action), action, prompt, hiddenFields(r.PostForm))
	if ok {
		http.Redirect(w, r, dashboardURL(sel), http.StatusSeeOther)
		return
	}
	h.writeDialog(w, r, http.StatusUnprocessableEntity, sel, dialog)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := dashboard.ParsePanelID(r.URL.Query().Get("panel"))
	if !ok || !id.IsTable() {
		h.handleFilterError(w, r, validationError{field: "panel"})
		return
	}
	ws, sel, _, err := h.workspace(r)
	if err != nil {
		h.handleFilterError(w, r, err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	mode := id.View(sel)
	if r.URL.Query().Get("format") == "raw" {
		payload, err := h.backend.Ledger(r.Context(), sel.LedgerRequest(mode))
		if err != nil {
			h.handleBackendError(w, r, "load raw export", err)
			return
		}
		if err := export.WriteRecordsCSV(buf, ui.ColumnsFor(sel.Entity), payload.Ratting); err != nil {
			h.handleServerError(w, r, "write raw csv", err)
			return
		}
	} else {
		if err := ws.Dashboard.RefreshPanel(r.Context(), id); err != nil {
			h.handleServerError(w, r, "refresh panel", err)
			return
		}
		panel, _ := ws.Dashboard.Panel(id)
		grid := panel.Grid()
		if grid == nil {
			h.respondCategory(w, r, panel.Category())
			return
		}
		if err := export.WriteGridCSV(buf, grid); err != nil {
			h.handleServerError(w, r, "write grid csv", err)
			return
		}
	}

	filename := fmt.Sprintf("ledger-%s-%d-%s-%s.csv", sel.Entity, sel.EntityPK, mode, sel.DateToken(mode))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handleCacheBump(w http.ResponseWriter, r *http.Request) {
	next := r.PostFormValue("next")
	if !strings.HasPrefix(next, "/ledger/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	if h.invalidator == nil {
		h.handleServerError(w, r, "cache bump", errors.New("cache invalidation not configured"))
		return
	}
	if err := h.invalidator.InvalidateCache(r.Context()); err != nil {
		h.handleServerError(w, r, "cache bump", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Ledger data will be refreshed from the backend"})
	}
	if isScripted(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) csrfToken(ctx context.Context, sess *shared.Session) string {
	if h.csrf == nil || sess == nil {
		return ""
	}
	token, err := h.csrf.EnsureToken(ctx, sess)
	if err != nil {
		h.logError("csrf token", err)
	}
	return token
}

func (h *Handler) respondCategory(w http.ResponseWriter, r *http.Request, cat backend.Category) {
	switch cat {
	case backend.CategoryPermission:
		httpx.Error(w, r, http.StatusForbidden, dashboard.MessagePermission)
	case backend.CategoryNotFound:
		httpx.Error(w, r, http.StatusNotFound, dashboard.MessageNotFound)
	default:
		httpx.Error(w, r, http.StatusBadGateway, dashboard.MessageGeneric)
	}
}

func (h *Handler) handleBackendError(w http.ResponseWriter, r *http.Request, context string, err error) {
	h.logError(context, err)
	h.respondCategory(w, r, backend.Classify(err))
}

func (h *Handler) handleFilterError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr validationError
	if errors.As(err, &vErr) {
		httpx.Error(w, r, http.StatusBadRequest, "Invalid parameter: "+vErr.field)
		return
	}
	h.handleServerError(w, r, "parse filters", err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, r *http.Request, context string, err error) {
	h.logError(context, err)
	httpx.Error(w, r, http.StatusInternalServerError, "")
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

// hiddenFields keeps the values a confirmation forwards to the backend,
// dropping this service's own form controls.
func hiddenFields(values url.Values) url.Values {
	out := url.Values{}
	for key, vals := range values {
		switch key {
		case shared.CSRFFormField, "prompt", "year", "month", "day", "view", "q", "sort", "desc", "render":
			continue
		}
		out[key] = append([]string(nil), vals...)
	}
	return out
}

// gridQuery extends the selection query with search and sort state.
func gridQuery(query string, grid dashboard.GridView) string {
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	if grid.Query != "" {
		values.Set("q", grid.Query)
	}
	if grid.SortKey != "" {
		values.Set("sort", grid.SortKey)
		values.Set("desc", strconv.FormatBool(grid.Desc))
	}
	return values.Encode()
}

func confirmDialog(action string) string {
	return "confirm-" + action
}

func dashboardURL(sel ledger.Selection) string {
	return dashboard.BasePath(sel) + "?" + dashboard.Query(sel).Encode()
}

func isScripted(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "fetch"
}
