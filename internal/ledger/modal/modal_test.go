package modal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/backend"
	"github.com/guildledger/ledgerboard/internal/ledger/dashboard"
)

type stubFetcher struct {
	fragment  string
	breakdown ledger.Breakdown
	err       error

	submitted url.Values
	token     string
}

func (s *stubFetcher) Fragment(ctx context.Context, req ledger.Request) (string, error) {
	return s.fragment, s.err
}

func (s *stubFetcher) Breakdown(ctx context.Context, req ledger.Request) (ledger.Breakdown, error) {
	return s.breakdown, s.err
}

func (s *stubFetcher) Submit(ctx context.Context, req ledger.Request, form url.Values, csrfToken string) error {
	s.submitted = form
	s.token = csrfToken
	return s.err
}

func newController(f Fetcher) *Controller {
	return NewController(f, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOpenPromotesTitle(t *testing.T) {
	f := &stubFetcher{fragment: `<div class="wrap"><h5 class="modal-title big">  Foo
	details </h5><p>Body text</p></div>`}
	c := newController(f)

	d := c.Open(context.Background(), "ledger-detail", ledger.Request{Method: http.MethodGet, Path: "/x"})
	assert.Equal(t, "Foo details", d.Title)
	assert.NotContains(t, string(d.Body), "modal-title")
	assert.Contains(t, string(d.Body), "<p>Body text</p>")
	assert.False(t, d.Loading)
	assert.True(t, d.Open())
	assert.Equal(t, d, c.Get("ledger-detail"))
}

func TestOpenPromotesTitleByID(t *testing.T) {
	f := &stubFetcher{fragment: `<span id="modal-title">First</span><span class="modal-title">Second</span>`}
	d := newController(f).Open(context.Background(), "m", ledger.Request{})
	assert.Equal(t, "First", d.Title)
	assert.Contains(t, string(d.Body), "Second")
}

func TestOpenWithoutTitle(t *testing.T) {
	f := &stubFetcher{fragment: `<table><tr><td>1</td></tr></table>`}
	d := newController(f).Open(context.Background(), "m", ledger.Request{})
	assert.Empty(t, d.Title)
	assert.Contains(t, string(d.Body), "<td>1</td>")
}

func TestOpenErrorDialogs(t *testing.T) {
	cases := map[int]string{
		http.StatusForbidden:           dashboard.MessagePermission,
		http.StatusNotFound:            dashboard.MessageNotFound,
		http.StatusInternalServerError: dashboard.MessageGeneric,
	}
	for status, message := range cases {
		f := &stubFetcher{err: &backend.StatusError{Status: status}}
		d := newController(f).Open(context.Background(), "m", ledger.Request{})
		assert.True(t, d.Errored)
		assert.Equal(t, ErrorTitle, d.Title)
		assert.Equal(t, message, d.Message)
		assert.Empty(t, d.Body)
	}
}

func TestCloseClearsContent(t *testing.T) {
	f := &stubFetcher{fragment: `<p>old</p>`}
	c := newController(f)
	c.Open(context.Background(), "m", ledger.Request{})
	c.Close("m")

	d := c.Get("m")
	assert.False(t, d.Open())
	assert.Empty(t, d.Body)
}

func TestBreakdownSections(t *testing.T) {
	f := &stubFetcher{breakdown: ledger.Breakdown{
		Summary: map[string]ledger.Amount{"Bounty": 100, "ESS": 20},
		Daily:   map[string]ledger.Amount{"2024-03-01": 120},
		Hourly:  map[string]ledger.Amount{},
		Total:   ledger.BreakdownTotals{Summary: 120, Daily: 120},
	}}
	d := newController(f).Breakdown(context.Background(), "m", ledger.Request{})
	require.NotNil(t, d.Breakdown)
	require.Len(t, d.Breakdown.Sections, 3)

	summary := d.Breakdown.Sections[0]
	assert.Equal(t, "summary", summary.Key)
	require.Len(t, summary.Rows, 2)
	assert.Equal(t, "Bounty", summary.Rows[0].Label)
	assert.Equal(t, "100 ISK", summary.Rows[0].Amount.Text)
	assert.Equal(t, "120 ISK", summary.Total.Text)

	hourly := d.Breakdown.Sections[2]
	assert.Empty(t, hourly.Rows)
	assert.Equal(t, "0 ISK", hourly.Total.Text)
}

func TestConfirmSuccess(t *testing.T) {
	f := &stubFetcher{}
	c := newController(f)
	c.Prompt("confirm", "switch", "Switch main?", url.Values{"character_id": {"7"}})

	form := url.Values{backend.CSRFField: {"tok"}, "character_id": {"7"}, "planet_id": {"9"}}
	d, ok := c.Confirm(context.Background(), "confirm", ledger.Request{Method: http.MethodPost, Path: "/a"}, "switch", "Switch main?", form)
	assert.True(t, ok)
	assert.False(t, d.Open())
	assert.Equal(t, "tok", f.token)
	assert.Equal(t, "7", f.submitted.Get("character_id"))
	assert.Equal(t, "9", f.submitted.Get("planet_id"))
	assert.Empty(t, f.submitted.Get(backend.CSRFField))
	assert.False(t, c.Get("confirm").Open())
}

func TestConfirmFailureShakes(t *testing.T) {
	f := &stubFetcher{err: &backend.StatusError{Status: http.StatusBadRequest, Message: "Planet already claimed"}}
	c := newController(f)

	d, ok := c.Confirm(context.Background(), "confirm", ledger.Request{}, "claim", "Claim?", url.Values{"planet_id": {"9"}})
	assert.False(t, ok)
	assert.True(t, d.Shake)
	assert.Equal(t, "Planet already claimed", d.Message)
	require.NotNil(t, d.Confirm)
	assert.Equal(t, "9", d.Confirm.Fields.Get("planet_id"))

	f.err = errors.New("connection reset")
	d, _ = c.Confirm(context.Background(), "confirm", ledger.Request{}, "claim", "Claim?", url.Values{})
	assert.True(t, strings.HasPrefix(d.Message, "The action"))
}
