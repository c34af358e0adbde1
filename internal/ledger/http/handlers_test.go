package ledgerhttp

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/backend"
	"github.com/guildledger/ledgerboard/internal/shared"
	"github.com/guildledger/ledgerboard/internal/view"
)

const (
	monthLedger   = "/ledger/api/character/123/ledger/date/2024-3-1/view/month/"
	yearLedger    = "/ledger/api/character/123/ledger/date/2024-1-1/view/year/"
	monthBoard    = "/ledger/api/character/123/billboard/date/2024-3-1/view/month/"
	yearBoard     = "/ledger/api/character/123/billboard/date/2024-1-1/view/year/"
	detailPath    = "/ledger/api/character/123/7/ledger/template/date/2024-3-1/view/month/"
	breakdownPath = "/ledger/api/character/123/7/ledger/details/date/2024-3-1/view/month/"
	actionPath    = "/ledger/api/character/123/action/switch/"
)

type fakeBackend struct {
	mu       sync.Mutex
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
	requests []string
	forms    []url.Values
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		f.forms = append(f.forms, r.PostForm)
	}
	route := f.routes[r.URL.Path]
	f.mu.Unlock()
	if route == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ratting":[],"total":{},"billboard":{}}`))
		return
	}
	route(w, r)
}

func (f *fakeBackend) saw(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.requests {
		if req == call {
			return true
		}
	}
	return false
}

func jsonBody(body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func status(code int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
}

const fooLedger = `{"ratting":[{"main_id":7,"main_name":"Foo","entity_type":"character","total_amount":100,"total_amount_ess":20,"total_amount_mining":0,"total_amount_others":0,"total_amount_costs":0,"total_amount_all":120}],"total":{"total_amount":100,"total_amount_ess":20,"total_amount_all":120}}`

type testEnv struct {
	router  chi.Router
	backend *fakeBackend
	handler *Handler
	bumps   int
}

func newTestEnv(t *testing.T, routes map[string]func(http.ResponseWriter, *http.Request)) *testEnv {
	t.Helper()
	fake := &fakeBackend{routes: routes}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := backend.NewCache(rdb, time.Minute)
	client := backend.NewClient(srv.URL, 0, backend.WithCache(cache))

	templates, err := view.NewEngine()
	require.NoError(t, err)

	env := &testEnv{backend: fake}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.handler = NewHandler(logger, client, templates, shared.NewCSRFManager("secret"), Options{
		WorkspaceTTL: time.Hour,
		Invalidator: InvalidatorFunc(func(ctx context.Context) error {
			env.bumps++
			_, err := cache.Bump(ctx)
			return err
		}),
	})
	env.handler.WithNow(func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) })

	r := chi.NewRouter()
	sess := shared.NewSession()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	env.handler.MountRoutes(r)
	env.router = r
	return env
}

func (e *testEnv) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func TestDashboardRendersPositiveRow(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		monthLedger: jsonBody(fooLedger),
	})

	rr := env.do(http.MethodGet, "/ledger/character/123/?year=2024&month=3&view=month&render=full", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.backend.saw("GET "+monthLedger))
	assert.True(t, env.backend.saw("GET "+yearLedger))
	assert.True(t, env.backend.saw("GET "+monthBoard))
	assert.True(t, env.backend.saw("GET "+yearBoard))

	body := rr.Body.String()
	assert.Equal(t, 1, strings.Count(body, `<tr data-row="7">`))
	assert.Contains(t, body, `<span class="positive">100 ISK</span>`)
	assert.Contains(t, body, "Foo")
	assert.NotContains(t, body, `class="dropdown-toggle" disabled`)
	assert.Contains(t, body, "images.evetech.net/characters/7/portrait")
}

func TestDashboardForbiddenDisablesControls(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		monthLedger: jsonBody(fooLedger),
		yearBoard:   status(http.StatusForbidden, `{"message":"nope"}`),
	})

	rr := env.do(http.MethodGet, "/ledger/character/123/?year=2024&month=3&render=full", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "You don&#39;t have permission to view this data")
	assert.Equal(t, 4, strings.Count(body, `class="dropdown-toggle" disabled`))
	assert.Contains(t, body, `class="administration" disabled`)
	assert.Contains(t, body, `<span class="positive">100 ISK</span>`, "other panels still render")
}

func TestDashboardPanelMessages(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		monthLedger: status(http.StatusNotFound, ""),
		yearLedger:  status(http.StatusInternalServerError, ""),
	})
	body := env.do(http.MethodGet, "/ledger/character/123/?year=2024&month=3&render=full", nil).Body.String()
	assert.Contains(t, body, "No data found")
	assert.Contains(t, body, "An error occurred while loading data")
	assert.NotContains(t, body, `class="dropdown-toggle" disabled`)
}

func TestDashboardDefersPanelsToFragments(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		monthLedger: jsonBody(fooLedger),
	})

	rr := env.do(http.MethodGet, "/ledger/character/123/?year=2024&month=3&q=fo", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, env.backend.requests, "page render must not wait on the backend")

	body := rr.Body.String()
	assert.Equal(t, 4, strings.Count(body, `class="panel panel-loading`))
	assert.Equal(t, 4, strings.Count(body, `aria-busy="true"`))
	assert.Contains(t, body, `data-src="/ledger/character/123/panels/month-table?day=15&amp;month=3&amp;q=fo&amp;view=month&amp;year=2024"`)
	assert.Contains(t, body, `data-days-src="/ledger/character/123/days?`)
	assert.Contains(t, body, "render=full")
	assert.NotContains(t, body, `<tr data-row="7">`)

	frag := env.do(http.MethodGet, "/ledger/character/123/panels/month-table?year=2024&month=3&q=fo", nil)
	require.Equal(t, http.StatusOK, frag.Code)
	assert.Contains(t, frag.Body.String(), `class="panel panel-rendered`)
	assert.Contains(t, frag.Body.String(), `<tr data-row="7">`)
	assert.True(t, env.backend.saw("GET "+monthLedger))
}

func TestPanelFragmentMarksLockedControls(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		yearBoard: status(http.StatusForbidden, ""),
	})

	open := env.do(http.MethodGet, "/ledger/character/123/panels/month-table?year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, open.Code)
	assert.NotContains(t, open.Body.String(), "data-locked")

	locked := env.do(http.MethodGet, "/ledger/character/123/panels/year-charts?year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, locked.Code)
	assert.Contains(t, locked.Body.String(), "data-locked")
	assert.Contains(t, locked.Body.String(), "permission to view this data")

	// A new page load unlocks the controls until a fragment fails again.
	page := env.do(http.MethodGet, "/ledger/character/123/?year=2024&month=3", nil)
	assert.NotContains(t, page.Body.String(), `class="dropdown-toggle" disabled`)
}

func TestInvalidFilterReturnsBadRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, target := range []string{
		"/ledger/character/123/?month=13",
		"/ledger/character/123/?year=abc",
		"/ledger/character/123/?view=week",
		"/ledger/character/123/?sort=secret",
		"/ledger/character/123/?render=lazy",
		"/ledger/ship/123/",
		"/ledger/character/0/",
	} {
		rr := env.do(http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestPanelFragment(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		monthLedger: jsonBody(fooLedger),
	})
	rr := env.do(http.MethodGet, "/ledger/character/123/panels/month-table?year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `id="month-table"`)
	assert.Contains(t, rr.Body.String(), "100 ISK")
	assert.NotContains(t, rr.Body.String(), "<html")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/ledger/character/123/panels/week-table", nil).Code)
}

func TestDaysFragment(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(http.MethodGet, "/ledger/character/123/days?year=2024&month=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 29, strings.Count(rr.Body.String(), "<li>"))

	rr = env.do(http.MethodGet, "/ledger/character/123/days?year=2023&month=2", nil)
	assert.Equal(t, 28, strings.Count(rr.Body.String(), "<li>"))
}

func TestDetailModalPromotesTitle(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		detailPath: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<h4 class="modal-title">Foo ledger</h4><p>hello</p>`))
		},
	})
	rr := env.do(http.MethodGet, "/ledger/character/123/detail/7?year=2024&month=3&view=month", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `<h3 class="modal-heading">Foo ledger</h3>`)
	assert.Contains(t, body, "<p>hello</p>")
	assert.NotContains(t, body, `class="modal-title"`)

	rr = env.do(http.MethodPost, "/ledger/character/123/modal/ledger-detail/close?year=2024&month=3", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestDetailModalErrors(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		detailPath: status(http.StatusForbidden, ""),
	})
	body := env.do(http.MethodGet, "/ledger/character/123/detail/7?year=2024&month=3", nil).Body.String()
	assert.Contains(t, body, `<h3 class="modal-heading">Error</h3>`)
	assert.Contains(t, body, "permission to view this data")

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/ledger/character/123/detail/abc", nil).Code)
}

func TestBreakdownModal(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		breakdownPath: jsonBody(`{"summary":{"Bounty":"1500"},"daily":{"2024-03-01":1500},"hourly":{},"total":{"summary":1500,"daily":1500,"hourly":0}}`),
	})
	rr := env.do(http.MethodGet, "/ledger/character/123/breakdown/7?year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "breakdown-summary")
	assert.Contains(t, body, `<span class="positive">1,500 ISK</span>`)
}

func TestConfirmSuccessRedirects(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		actionPath: jsonBody(`{"status":"ok"}`),
	})
	form := url.Values{
		shared.CSRFFormField: {"local"},
		backend.CSRFField:    {"backend-token"},
		"character_id":       {"7"},
		"prompt":             {"Switch?"},
	}
	rr := env.do(http.MethodPost, "/ledger/character/123/confirm/switch?year=2024&month=3", form)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "/ledger/character/123/?")

	require.Len(t, env.backend.forms, 1)
	sent := env.backend.forms[0]
	assert.Equal(t, "backend-token", sent.Get(backend.CSRFField))
	assert.Equal(t, "7", sent.Get("character_id"))
	assert.Empty(t, sent.Get(shared.CSRFFormField))
	assert.Empty(t, sent.Get("prompt"))
}

func TestConfirmFailureShakes(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		actionPath: status(http.StatusBadRequest, `{"message":"Character is not yours"}`),
	})
	rr := env.do(http.MethodPost, "/ledger/character/123/confirm/switch", url.Values{"character_id": {"7"}})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "shake")
	assert.Contains(t, body, "Character is not yours")
	assert.Contains(t, body, `name="character_id" value="7"`)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/ledger/character/123/confirm/DROP", url.Values{}).Code)
}

func TestConfirmPrompt(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(http.MethodGet, "/ledger/character/123/confirm/switch?prompt=Switch+main%3F&character_id=7", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Switch main?")
	assert.Contains(t, body, `name="character_id" value="7"`)
}

func TestCSVExport(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		monthLedger: jsonBody(fooLedger),
	})
	rr := env.do(http.MethodGet, "/ledger/character/123/export.csv?panel=month-table&year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "ledger-character-123-month-2024-3-1.csv")

	rows, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Name", rows[0][0])
	assert.NotContains(t, rows[0], "Actions")
	assert.Equal(t, []string{"Foo", "100 ISK", "20 ISK", "0 ISK", "0 ISK", "0 ISK", "120 ISK"}, rows[1])

	raw := env.do(http.MethodGet, "/ledger/character/123/export.csv?panel=month-table&year=2024&month=3&format=raw", nil)
	require.Equal(t, http.StatusOK, raw.Code)
	assert.Contains(t, raw.Body.String(), "7,Foo,100.00")

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/ledger/character/123/export.csv?panel=month-charts", nil).Code)
}

func TestCSVExportForbidden(t *testing.T) {
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		monthLedger: status(http.StatusForbidden, ""),
	})
	rr := env.do(http.MethodGet, "/ledger/character/123/export.csv?panel=month-table&year=2024&month=3", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCacheBump(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(http.MethodPost, "/ledger/admin/cache/bump", url.Values{"next": {"/ledger/character/123/?year=2024"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/ledger/character/123/?year=2024", rr.Header().Get("Location"))
	assert.Equal(t, 1, env.bumps)

	rr = env.do(http.MethodPost, "/ledger/admin/cache/bump", url.Values{"next": {"https://evil.example"}})
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestWorkspacesAreReusedAndEvicted(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	built := 0
	store := NewWorkspaces(time.Minute, func(sel ledger.Selection) *Workspace {
		built++
		return &Workspace{}
	})
	store.now = func() time.Time { return now }

	sel := ledger.NewSelection(ledger.EntityCharacter, 123, now)
	a := store.Get("s1", sel)
	b := store.Get("s1", sel)
	assert.Same(t, a, b)
	store.Get("s2", sel)
	assert.Equal(t, 2, built)

	now = now.Add(2 * time.Minute)
	store.Get("s1", sel)
	assert.Equal(t, 3, built)
	assert.Equal(t, 1, store.Len())
}

func TestWorkspacesAreKeyedBySelection(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	store := NewWorkspaces(time.Hour, func(sel ledger.Selection) *Workspace {
		return &Workspace{}
	})

	march := ledger.NewSelection(ledger.EntityCharacter, 123, now)
	april := march
	april.SetMonth(4)
	yearly := march
	yearly.SetView(ledger.ViewYear)

	a := store.Get("s1", march)
	assert.NotSame(t, a, store.Get("s1", april))
	assert.NotSame(t, a, store.Get("s1", yearly))
	assert.Same(t, a, store.Get("s1", ledger.NewSelection(ledger.EntityCharacter, 123, now)))
	assert.Equal(t, 3, store.Len())
}

func TestTabsWithDifferentMonthsKeepTheirPanels(t *testing.T) {
	aprilLedger := "/ledger/api/character/123/ledger/date/2024-4-1/view/month/"
	env := newTestEnv(t, map[string]func(http.ResponseWriter, *http.Request){
		monthLedger: jsonBody(fooLedger),
		aprilLedger: jsonBody(strings.ReplaceAll(fooLedger, `"Foo"`, `"Bar"`)),
	})

	march := env.do(http.MethodGet, "/ledger/character/123/panels/month-table?year=2024&month=3", nil)
	april := env.do(http.MethodGet, "/ledger/character/123/panels/month-table?year=2024&month=4", nil)
	assert.Contains(t, march.Body.String(), "Foo")
	assert.Contains(t, april.Body.String(), "Bar")

	// Exporting from the March tab still reads March.
	rr := env.do(http.MethodGet, "/ledger/character/123/export.csv?panel=month-table&year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Foo")
	assert.NotContains(t, rr.Body.String(), "Bar")
	assert.Equal(t, 2, env.handler.workspaces.Len())
}

func TestScriptedErrorsUseProblemJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/ledger/character/123/?month=13", nil)
	req.Header.Set("X-Requested-With", "fetch")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"title":"Bad Request","status":400,"detail":"Invalid parameter: month"}`, rr.Body.String())
}
