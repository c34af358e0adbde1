package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/guildledger/ledgerboard/internal/ledger"
)

const maxErrorBody = 64 << 10

// CSRFField is the form field and CSRFHeader the header the backend reads its token from.
const (
	CSRFField  = "csrfmiddlewaretoken"
	CSRFHeader = "X-CSRFToken"
)

// Client talks to the ledger backend. Responses are consumed as-is.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	logger     *slog.Logger
	requests   *prometheus.CounterVec
}

// Option customises a Client.
type Option func(*Client)

// WithCache enables response caching for JSON GET endpoints.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics registers a request counter on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		if reg == nil {
			return
		}
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_backend_requests_total",
			Help: "Backend requests by endpoint and status code.",
		}, []string{"endpoint", "code"})
		if err := reg.Register(counter); err != nil {
			if existing, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if vec, ok := existing.ExistingCollector.(*prometheus.CounterVec); ok {
					c.requests = vec
				}
			}
			return
		}
		c.requests = counter
	}
}

// NewClient constructs a backend client. A zero timeout leaves requests unbounded.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ledger fetches the ledger table payload.
func (c *Client) Ledger(ctx context.Context, req ledger.Request) (ledger.LedgerPayload, error) {
	var payload ledger.LedgerPayload
	if err := c.getJSON(ctx, "ledger", req, &payload); err != nil {
		return ledger.LedgerPayload{}, err
	}
	return payload, nil
}

// Billboard fetches the chart bundle payload.
func (c *Client) Billboard(ctx context.Context, req ledger.Request) (ledger.BillboardPayload, error) {
	var payload ledger.BillboardPayload
	if err := c.getJSON(ctx, "billboard", req, &payload); err != nil {
		return ledger.BillboardPayload{}, err
	}
	return payload, nil
}

// Breakdown fetches the JSON detail breakdown of a row.
func (c *Client) Breakdown(ctx context.Context, req ledger.Request) (ledger.Breakdown, error) {
	var payload ledger.Breakdown
	if err := c.getJSON(ctx, "breakdown", req, &payload); err != nil {
		return ledger.Breakdown{}, err
	}
	return payload, nil
}

// Fragment fetches an HTML detail fragment. Fragments are never cached since
// they can embed per-user form tokens.
func (c *Client) Fragment(ctx context.Context, req ledger.Request) (string, error) {
	body, err := c.do(ctx, "fragment", req, nil, "text/html", "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Submit posts a confirmation action. The CSRF token travels both as form
// field and header; a failure carries the backend {message} when present.
func (c *Client) Submit(ctx context.Context, req ledger.Request, form url.Values, csrfToken string) error {
	values := url.Values{}
	for key, vals := range form {
		values[key] = append([]string(nil), vals...)
	}
	if csrfToken != "" {
		values.Set(CSRFField, csrfToken)
	}
	_, err := c.do(ctx, "action", req, values, "application/json", csrfToken)
	return err
}

// Warm loads and caches the ledger and billboard payloads for req pairs.
func (c *Client) Warm(ctx context.Context, ledgerReq, billboardReq ledger.Request) error {
	if _, err := c.Ledger(ctx, ledgerReq); err != nil {
		return err
	}
	_, err := c.Billboard(ctx, billboardReq)
	return err
}

func (c *Client) getJSON(ctx context.Context, endpoint string, req ledger.Request, dest any) error {
	key, err := c.cache.BuildKey(ctx, req.Path)
	if err != nil {
		c.logWarn("cache key", err)
		key = ""
	}
	// Bodies are decoded before they reach the cache so a malformed
	// response never outlives the request that fetched it.
	decoded := false
	load := func(ctx context.Context) ([]byte, error) {
		body, err := c.do(ctx, endpoint, req, nil, "application/json", "")
		if err != nil {
			return nil, err
		}
		if err := decodeJSON(body, dest, req); err != nil {
			return nil, err
		}
		decoded = true
		return body, nil
	}
	var body []byte
	if key == "" {
		body, err = load(ctx)
	} else {
		body, err = c.cache.Fetch(ctx, key, load)
	}
	if err != nil {
		return err
	}
	if decoded {
		return nil
	}
	return decodeJSON(body, dest, req)
}

func decodeJSON(body []byte, dest any, req ledger.Request) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, req.Path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, req ledger.Request, form url.Values, accept, csrfToken string) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.baseURL + req.Path

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	if form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if csrfToken != "" {
		httpReq.Header.Set(CSRFHeader, csrfToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.count(endpoint, "error")
		return nil, fmt.Errorf("%w: %s: %v", ErrGeneric, req, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.count(endpoint, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Status: resp.StatusCode, URL: req.Path, Message: errorMessage(raw)}
	}
	return io.ReadAll(resp.Body)
}

func errorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}

func (c *Client) count(endpoint, code string) {
	if c.requests != nil {
		c.requests.WithLabelValues(endpoint, code).Inc()
	}
}

func (c *Client) logWarn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, slog.Any("error", err))
	}
}

// BaseURL exposes the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}
