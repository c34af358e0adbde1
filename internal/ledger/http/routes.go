package ledgerhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/guildledger/ledgerboard/internal/shared"
)

// MountRoutes registers the ledger dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/ledger", func(r chi.Router) {
		r.Post("/admin/cache/bump", h.handleCacheBump)
		r.Route("/{entity}/{pk}", func(r chi.Router) {
			r.Get("/", h.handleDashboard)
			r.Get("/panels/{panel}", h.handlePanel)
			r.Get("/days", h.handleDays)
			r.Get("/detail/{row}", h.handleDetail)
			r.Get("/breakdown/{row}", h.handleBreakdown)
			r.Post("/modal/{dialog}/close", h.handleCloseModal)
			r.Get("/confirm/{action}", h.handleConfirmPrompt)
			r.Post("/confirm/{action}", h.handleConfirm)
			r.Group(func(gr chi.Router) {
				gr.Use(limiter)
				gr.Get("/export.csv", h.handleCSV)
			})
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.ID != "" {
		return "session:" + sess.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
