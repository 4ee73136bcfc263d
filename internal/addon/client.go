package addon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/metrics"
)

const (
	RouteSupervisor = "supervisor"
	RouteDirect     = "direct"

	defaultTimeout = 20 * time.Second
	maxBodyBytes   = 16 << 20
	bodyPreviewLen = 100
)

// Options configures a Client. With a SupervisorToken the Supervisor URL is
// tried first and the direct URL is the fallback; without one only the direct
// URL is used.
type Options struct {
	DirectURL       string
	SupervisorURL   string
	SupervisorToken string
	Timeout         time.Duration
	HTTPClient      *http.Client
	Logger          *log.Logger
}

type route struct {
	name  string
	base  string
	token string
}

// Client talks to the Finance Assistant add-on REST API.
type Client struct {
	routes     []route
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	var routes []route
	if opts.SupervisorToken != "" && opts.SupervisorURL != "" {
		routes = append(routes, route{name: RouteSupervisor, base: strings.TrimRight(opts.SupervisorURL, "/"), token: opts.SupervisorToken})
	}
	if opts.DirectURL != "" {
		routes = append(routes, route{name: RouteDirect, base: strings.TrimRight(opts.DirectURL, "/")})
	}

	return &Client{
		routes:     routes,
		httpClient: httpClient,
		logger:     logger.WithComponent(log.ComponentAddon),
	}
}

// Routes returns the route names in the order they are tried.
func (c *Client) Routes() []string {
	names := make([]string, len(c.routes))
	for i, r := range c.routes {
		names[i] = r.name
	}
	return names
}

// Ping checks that the add-on answers.
func (c *Client) Ping(ctx context.Context) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, "ping", nil)
}

// Debug returns the add-on diagnostics payload.
func (c *Client) Debug(ctx context.Context) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, "debug", nil)
}

// AllDataRaw returns the undecoded /all_data payload.
func (c *Client) AllDataRaw(ctx context.Context) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, "all_data", nil)
}

// AllData fetches and decodes the combined budget payload.
func (c *Client) AllData(ctx context.Context) (*core.Snapshot, error) {
	raw, err := c.AllDataRaw(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := core.DecodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("all_data: %w", err)
	}
	for _, w := range snap.Warnings {
		c.logger.WarnContext(ctx, "Dropped part of add-on data",
			log.FieldOperation, log.OpRefresh,
			log.FieldEndpoint, "all_data",
			"detail", w)
	}
	return snap, nil
}

func (c *Client) AddRewardsCategory(ctx context.Context, name string) (json.RawMessage, error) {
	return c.postName(ctx, "rewards_categories", name)
}

func (c *Client) AddRewardsPayee(ctx context.Context, name string) (json.RawMessage, error) {
	return c.postName(ctx, "rewards_payees", name)
}

func (c *Client) postName(ctx context.Context, endpoint, name string) (json.RawMessage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return c.request(ctx, http.MethodPost, endpoint, map[string]string{"name": name})
}

// VerifyConnection calls the debug endpoint. Any failure is reported as ErrNotReady.
func (c *Client) VerifyConnection(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Verifying connection to Finance Assistant API")
	if _, err := c.Debug(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	c.logger.InfoContext(ctx, "Finance Assistant API connection verified")
	return nil
}

// request tries each route in order. When every route fails the error of the
// first route is returned.
func (c *Client) request(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	if len(c.routes) == 0 {
		return nil, errors.New("no add-on URL configured")
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	var primaryErr error
	for i, rt := range c.routes {
		if i > 0 {
			metrics.IncAddonFallback()
			c.logger.InfoContext(ctx, "Primary route failed, trying fallback",
				log.FieldRoute, rt.name,
				log.FieldEndpoint, endpoint,
				log.FieldError, primaryErr)
		}

		data, err := c.attempt(ctx, rt, method, endpoint, payload)
		if err == nil {
			return data, nil
		}
		if i == 0 {
			primaryErr = err
		} else {
			c.logger.ErrorContext(ctx, "Fallback route failed",
				log.FieldRoute, rt.name,
				log.FieldEndpoint, endpoint,
				log.FieldError, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, primaryErr
}

func (c *Client) attempt(ctx context.Context, rt route, method, endpoint string, payload []byte) (json.RawMessage, error) {
	url := rt.base + "/" + strings.TrimLeft(endpoint, "/")

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rt.token != "" {
		req.Header.Set("Authorization", "Bearer "+rt.token)
	}

	c.logger.DebugContext(ctx, "Add-on API request", log.FieldRoute, rt.name, log.FieldMethod, method, log.FieldPath, url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncAddonRequest(rt.name, "error")
		c.logger.WarnContext(ctx, "Add-on API connection error", log.FieldRoute, rt.name, log.FieldEndpoint, endpoint, log.FieldError, err)
		return nil, fmt.Errorf("%s API connection error: %w", rt.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.IncAddonRequest(rt.name, "error")
		return nil, fmt.Errorf("%s API read body: %w", rt.name, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if resp.StatusCode == http.StatusNoContent {
			metrics.IncAddonRequest(rt.name, "success")
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(body) {
			metrics.IncAddonRequest(rt.name, "error")
			c.logger.ErrorContext(ctx, "Add-on API returned non-JSON",
				log.FieldRoute, rt.name,
				log.FieldStatusCode, resp.StatusCode,
				"content", preview(body, 200))
			return nil, fmt.Errorf("%s API %s: %w: %s", rt.name, endpoint, ErrInvalidResponse, preview(body, bodyPreviewLen))
		}
		metrics.IncAddonRequest(rt.name, "success")
		return json.RawMessage(body), nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.IncAddonRequest(rt.name, "auth")
		c.logger.WarnContext(ctx, "Add-on API authentication error, check token",
			log.FieldRoute, rt.name, log.FieldStatusCode, resp.StatusCode, log.FieldEndpoint, endpoint)
		return nil, fmt.Errorf("%s API %d for %s: %w", rt.name, resp.StatusCode, endpoint, ErrAuthentication)

	case resp.StatusCode == http.StatusNotFound:
		metrics.IncAddonRequest(rt.name, "not_found")
		c.logger.InfoContext(ctx, "Add-on API 404, check slug and endpoint",
			log.FieldRoute, rt.name, log.FieldEndpoint, endpoint)
		return nil, fmt.Errorf("%s API 404 for %s: %w", rt.name, endpoint, ErrNotFound)

	default:
		metrics.IncAddonRequest(rt.name, "error")
		c.logger.WarnContext(ctx, "Add-on API request failed",
			log.FieldRoute, rt.name,
			log.FieldStatusCode, resp.StatusCode,
			log.FieldEndpoint, endpoint,
			"response", preview(body, 200))
		return nil, &APIError{
			Route:  rt.name,
			Method: method,
			Path:   endpoint,
			Status: resp.StatusCode,
			Body:   preview(body, bodyPreviewLen),
		}
	}
}

// preview returns at most n bytes of body, cut on a rune boundary.
func preview(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	for n > 0 && !utf8.RuneStart(body[n]) {
		n--
	}
	return string(body[:n]) + "..."
}
