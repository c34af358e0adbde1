package app

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/guildledger/ledgerboard/internal/ledger"
	ledgerhttp "github.com/guildledger/ledgerboard/internal/ledger/http"
	"github.com/guildledger/ledgerboard/internal/observability"
	"github.com/guildledger/ledgerboard/internal/shared"
	"github.com/guildledger/ledgerboard/internal/view"
	"github.com/guildledger/ledgerboard/jobs"
	"github.com/guildledger/ledgerboard/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	LedgerHandler  *ledgerhttp.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with the dashboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			target, ok := defaultLedgerPath(params.Config)
			if !ok {
				http.NotFound(w, r)
				return
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
		})

		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

// defaultLedgerPath resolves LEDGER_DEFAULT_ENTITY into a dashboard path.
func defaultLedgerPath(cfg *Config) (string, bool) {
	if cfg == nil {
		return "", false
	}
	kind, pk, ok := strings.Cut(strings.TrimSpace(cfg.DefaultEntity), ":")
	if !ok {
		return "", false
	}
	entity, err := ledger.ParseEntityType(kind)
	if err != nil {
		return "", false
	}
	pk = strings.TrimSpace(pk)
	if pk == "" || strings.ContainsAny(pk, "/?#") {
		return "", false
	}
	return fmt.Sprintf("/ledger/%s/%s/", entity, pk), true
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
