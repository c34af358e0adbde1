// Package modal drives the dashboard dialogs: backend detail fragments, JSON
// breakdowns and confirmation actions proxied to the backend.
package modal

import (
	"context"
	"html/template"
	"log/slog"
	"net/url"
	"sort"
	"sync"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/backend"
	"github.com/guildledger/ledgerboard/internal/ledger/dashboard"
	"github.com/guildledger/ledgerboard/internal/ledger/ui"
)

// Fetcher is the backend surface dialogs use.
type Fetcher interface {
	Fragment(ctx context.Context, req ledger.Request) (string, error)
	Breakdown(ctx context.Context, req ledger.Request) (ledger.Breakdown, error)
	Submit(ctx context.Context, req ledger.Request, form url.Values, csrfToken string) error
}

// ErrorTitle heads every failed dialog.
const ErrorTitle = "Error"

// confirmFailed is shown when the backend sends no message.
const confirmFailed = "The action could not be completed"

// Dialog is the rendered state of one modal.
type Dialog struct {
	ID        string
	Title     string
	Body      template.HTML
	Loading   bool
	Errored   bool
	Message   string
	Shake     bool
	Breakdown *BreakdownView
	Confirm   *ConfirmView
}

// Open reports whether the dialog has content to show.
func (d Dialog) Open() bool {
	return d.Body != "" || d.Errored || d.Breakdown != nil || d.Confirm != nil
}

// ConfirmView keeps a confirmation dialog's form so it can be re-rendered
// after a failure.
type ConfirmView struct {
	Action string
	Prompt string
	Fields url.Values
}

// Controller owns the dialogs of one dashboard workspace.
type Controller struct {
	fetcher Fetcher
	format  *ui.Formatter
	logger  *slog.Logger

	mu      sync.Mutex
	dialogs map[string]*Dialog
}

// NewController constructs a controller.
func NewController(fetcher Fetcher, format *ui.Formatter, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		fetcher: fetcher,
		format:  format,
		logger:  logger.With(slog.String("component", "modal")),
		dialogs: make(map[string]*Dialog),
	}
}

// Get returns a copy of a dialog's state.
func (c *Controller) Get(dialogID string) Dialog {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.dialogs[dialogID]; ok {
		return *d
	}
	return Dialog{ID: dialogID}
}

func (c *Controller) set(d Dialog) Dialog {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := d
	c.dialogs[d.ID] = &stored
	return d
}

// Open loads a backend HTML fragment into the dialog and promotes its
// modal-title element into the dialog header.
func (c *Controller) Open(ctx context.Context, dialogID string, req ledger.Request) Dialog {
	c.set(Dialog{ID: dialogID, Loading: true})

	fragment, err := c.fetcher.Fragment(ctx, req)
	if err != nil {
		return c.fail(dialogID, err)
	}
	title, body, err := promoteTitle(fragment)
	if err != nil {
		return c.fail(dialogID, err)
	}
	return c.set(Dialog{ID: dialogID, Title: title, Body: body})
}

// Close clears a dialog so a reopen never shows stale content.
func (c *Controller) Close(dialogID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.dialogs, dialogID)
}

func (c *Controller) fail(dialogID string, err error) Dialog {
	msg := dashboard.MessageFor(backend.Classify(err))
	if msg == "" {
		msg = dashboard.MessageGeneric
	}
	c.logger.Warn("dialog failed", slog.String("dialog", dialogID), slog.Any("error", err))
	return c.set(Dialog{ID: dialogID, Title: ErrorTitle, Errored: true, Message: msg})
}

// BreakdownSection is one table of the breakdown dialog.
type BreakdownSection struct {
	Key   string
	Title string
	Rows  []BreakdownRow
	Total ui.Money
}

// BreakdownRow is one labelled amount.
type BreakdownRow struct {
	Label  string
	Amount ui.Money
}

// BreakdownView groups the summary, daily and hourly sections.
type BreakdownView struct {
	Sections []BreakdownSection
}

// Breakdown loads the JSON detail variant and renders it as tables.
func (c *Controller) Breakdown(ctx context.Context, dialogID string, req ledger.Request) Dialog {
	c.set(Dialog{ID: dialogID, Loading: true})

	payload, err := c.fetcher.Breakdown(ctx, req)
	if err != nil {
		return c.fail(dialogID, err)
	}
	view := &BreakdownView{Sections: []BreakdownSection{
		c.section("summary", "Summary", payload.Summary, payload.Total.Summary),
		c.section("daily", "Daily", payload.Daily, payload.Total.Daily),
		c.section("hourly", "Hourly", payload.Hourly, payload.Total.Hourly),
	}}
	return c.set(Dialog{ID: dialogID, Title: "Breakdown", Breakdown: view})
}

func (c *Controller) section(key, title string, values map[string]ledger.Amount, total ledger.Amount) BreakdownSection {
	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	rows := make([]BreakdownRow, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, BreakdownRow{Label: label, Amount: c.currency(values[label])})
	}
	return BreakdownSection{Key: key, Title: title, Rows: rows, Total: c.currency(total)}
}

func (c *Controller) currency(v ledger.Amount) ui.Money {
	if c.format == nil {
		return ui.FormatCurrency(v)
	}
	return c.format.Currency(v)
}

// Prompt shows a confirmation dialog for an action.
func (c *Controller) Prompt(dialogID, action, prompt string, fields url.Values) Dialog {
	return c.set(Dialog{
		ID:      dialogID,
		Title:   "Confirm",
		Confirm: &ConfirmView{Action: action, Prompt: prompt, Fields: fields},
	})
}

// Confirm forwards the posted form to the backend action. The csrf token is
// taken from the form and sent as both field and header. On success the
// dialog is cleared and true returned; on failure it is re-rendered with the
// backend message and the shake flag.
func (c *Controller) Confirm(ctx context.Context, dialogID string, req ledger.Request, action, prompt string, form url.Values) (Dialog, bool) {
	token := form.Get(backend.CSRFField)
	fields := url.Values{}
	for key, values := range form {
		if key == backend.CSRFField {
			continue
		}
		fields[key] = append([]string(nil), values...)
	}

	if err := c.fetcher.Submit(ctx, req, fields, token); err != nil {
		msg := backend.MessageOf(err)
		if msg == "" {
			msg = confirmFailed
		}
		c.logger.Warn("confirmation failed", slog.String("dialog", dialogID), slog.String("action", action), slog.Any("error", err))
		return c.set(Dialog{
			ID:      dialogID,
			Title:   "Confirm",
			Errored: true,
			Message: msg,
			Shake:   true,
			Confirm: &ConfirmView{Action: action, Prompt: prompt, Fields: fields},
		}), false
	}
	c.Close(dialogID)
	return Dialog{ID: dialogID}, true
}
