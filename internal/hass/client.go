package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ttlcache "github.com/jellydator/ttlcache/v2"

	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
)

var (
	// ErrEntityNotFound is returned when Home Assistant has no such entity.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrUnauthorized is returned for 401/403 responses.
	ErrUnauthorized = errors.New("home assistant rejected the token")
)

const defaultTimeout = 15 * time.Second

type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	// PriceTTL is how long linked-entity states are cached. Zero disables the cache.
	PriceTTL time.Duration
	Logger   *log.Logger
}

// Client reads and writes entity states.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      *ttlcache.Cache
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

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: httpClient,
		logger:     logger.WithComponent(log.ComponentHass),
	}
	if opts.PriceTTL > 0 {
		c.cache = ttlcache.NewCache()
		_ = c.cache.SetTTL(opts.PriceTTL)
		c.cache.SkipTTLExtensionOnHit(true)
	}
	return c
}

// Close stops the price cache janitor.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// SetState creates or updates an entity state.
func (c *Client) SetState(ctx context.Context, entityID, state string, attrs map[string]any) error {
	body, err := json.Marshal(stateRequest{State: state, Attributes: attrs})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/states/"+url.PathEscape(entityID), body)
	if err != nil {
		return fmt.Errorf("set state %s: %w", entityID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	default:
		return fmt.Errorf("set state %s: %w", entityID, statusError(resp.StatusCode))
	}
}

// GetState returns one entity.
func (c *Client) GetState(ctx context.Context, entityID string) (*Entity, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", entityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", entityID, ErrEntityNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get state %s: %w", entityID, statusError(resp.StatusCode))
	}

	var e Entity
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return nil, fmt.Errorf("unable to parse JSON response: %w", err)
	}
	return &e, nil
}

// States returns every entity Home Assistant knows.
func (c *Client) States(ctx context.Context) ([]*Entity, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/states", nil)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list states: %w", statusError(resp.StatusCode))
	}

	var entities []*Entity
	if err := json.NewDecoder(resp.Body).Decode(&entities); err != nil {
		return nil, fmt.Errorf("unable to parse JSON response: %w", err)
	}
	return entities, nil
}

// Price returns the numeric state of entityID. Lookups are cached for the
// configured TTL.
func (c *Client) Price(ctx context.Context, entityID string) (float64, bool) {
	if c.cache != nil {
		if v, err := c.cache.Get(entityID); err == nil {
			return v.(*Entity).Numeric()
		}
	}

	e, err := c.GetState(ctx, entityID)
	if err != nil {
		c.logger.WarnContext(ctx, "Linked entity lookup failed", log.FieldEntityID, entityID, log.FieldError, err)
		return 0, false
	}
	if c.cache != nil {
		_ = c.cache.Set(entityID, e)
	}

	price, ok := e.Numeric()
	if !ok {
		c.logger.DebugContext(ctx, "Linked entity state is not numeric", log.FieldEntityID, entityID, log.FieldState, e.State)
	}
	return price, ok
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to make request: %w", err)
	}
	return resp, nil
}

func statusError(status int) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w (HTTP %d)", ErrUnauthorized, status)
	}
	return fmt.Errorf("got unexpected HTTP status: %d", status)
}
