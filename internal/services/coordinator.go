package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chbarnhouse/ha-finance-assistant/internal/addon"
	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/metrics"
)

// ErrNoData is returned before the first successful refresh.
var ErrNoData = errors.New("no data fetched yet")

// Fetcher loads the combined budget payload from the add-on.
type Fetcher interface {
	AllData(ctx context.Context) (*core.Snapshot, error)
}

// Update is delivered to subscribers after every refresh attempt.
// Snapshot is the last good snapshot, which may predate a failed attempt.
type Update struct {
	Snapshot *core.Snapshot
	Success  bool
	Err      error
	At       time.Time
}

// CoordinatorConfig holds configuration for the coordinator
type CoordinatorConfig struct {
	// ScanInterval is how often the add-on is polled (default: 5m)
	ScanInterval time.Duration
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{ScanInterval: 5 * time.Minute}
}

// Coordinator polls the add-on and fans each result out to subscribers.
type Coordinator struct {
	fetcher Fetcher
	config  CoordinatorConfig
	logger  *log.Logger
	now     func() time.Time

	refreshMu sync.Mutex

	dataMu      sync.RWMutex
	data        *core.Snapshot
	lastSuccess bool
	lastUpdate  time.Time
	lastErr     error

	listenersMu sync.Mutex
	listeners   []func(Update)

	refreshCh chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewCoordinator(fetcher Fetcher, config CoordinatorConfig, logger *log.Logger) *Coordinator {
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultCoordinatorConfig().ScanInterval
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Coordinator{
		fetcher:   fetcher,
		config:    config,
		logger:    logger.WithComponent(log.ComponentCoordinator),
		now:       time.Now,
		refreshCh: make(chan struct{}, 1),
	}
}

// Subscribe registers fn to run after every refresh attempt. Listeners run
// synchronously on the refreshing goroutine.
func (c *Coordinator) Subscribe(fn func(Update)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// FirstRefresh performs the initial fetch. Failure is reported as
// addon.ErrNotReady so setup can retry.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: first refresh: %w", addon.ErrNotReady, err)
	}
	return nil
}

// Refresh fetches once. On failure the previous snapshot is kept.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := c.now()
	snap, err := c.fetcher.AllData(ctx)
	if err == nil && snap == nil {
		err = errors.New("add-on returned no data")
	}
	metrics.RecordRefresh(c.now().Sub(start), err)

	c.dataMu.Lock()
	c.lastUpdate = c.now()
	c.lastErr = err
	c.lastSuccess = err == nil
	if err == nil {
		c.data = snap
	}
	update := Update{Snapshot: c.data, Success: c.lastSuccess, Err: err, At: c.lastUpdate}
	c.dataMu.Unlock()

	if err != nil {
		c.logger.WarnContext(ctx, "Error communicating with Finance Assistant API",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
	} else {
		c.logger.DebugContext(ctx, "Refresh completed",
			log.FieldOperation, log.OpRefresh,
			log.FieldDuration, c.now().Sub(start).Milliseconds())
	}

	c.notify(update)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

func (c *Coordinator) notify(u Update) {
	c.listenersMu.Lock()
	listeners := append(([]func(Update))(nil), c.listeners...)
	c.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(u)
	}
}

// RequestRefresh asks the run loop for an immediate refresh. Requests made
// while one is pending are merged. It reports whether a new request was queued.
func (c *Coordinator) RequestRefresh() bool {
	select {
	case c.refreshCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Data returns the last good snapshot.
func (c *Coordinator) Data() (*core.Snapshot, error) {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	if c.data == nil {
		return nil, ErrNoData
	}
	return c.data, nil
}

// LastUpdateSuccess reports whether the most recent attempt worked.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return c.lastSuccess
}

func (c *Coordinator) LastUpdate() time.Time {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return c.lastUpdate
}

func (c *Coordinator) LastError() error {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return c.lastErr
}

// Start begins the polling loop. Returns an error if already running.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("coordinator is already running")
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	go c.runLoop(ctx, stopCh, doneCh)

	c.logger.InfoContext(ctx, "Coordinator started", "scan_interval", c.config.ScanInterval)
	return nil
}

// Stop gracefully stops the loop and waits for the current refresh to finish.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		c.logger.InfoContext(ctx, "Coordinator stopped gracefully")
	case <-ctx.Done():
		c.logger.WarnContext(ctx, "Coordinator stop timed out")
		return ctx.Err()
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Coordinator) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(c.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		case <-c.refreshCh:
			_ = c.Refresh(ctx)
			ticker.Reset(c.config.ScanInterval)
		}
	}
}
