package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/chbarnhouse/ha-finance-assistant/internal/cache"
	"github.com/chbarnhouse/ha-finance-assistant/internal/config"
	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/metrics"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sensor"
)

// StateWriter writes entity states to Home Assistant.
type StateWriter interface {
	SetState(ctx context.Context, entityID, state string, attrs map[string]any) error
}

// SnapshotSink receives the readings of every successful refresh.
type SnapshotSink interface {
	RecordSnapshot(ctx context.Context, snap core.SensorSnapshot) error
}

// PublisherConfig holds configuration for the publisher
type PublisherConfig struct {
	// Concurrency bounds parallel state writes (default: 4)
	Concurrency int

	// RatePerSecond caps state writes per second (default: 20)
	RatePerSecond float64

	// StateRefreshTTL is how long an unchanged state is not rewritten (default: 1h)
	StateRefreshTTL time.Duration

	// CacheSize bounds the published-state cache (default: 4096)
	CacheSize int
}

func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Concurrency:     4,
		RatePerSecond:   20,
		StateRefreshTTL: time.Hour,
		CacheSize:       4096,
	}
}

// PublishResult summarises one publish pass.
type PublishResult struct {
	Written int
	Skipped int
	Failed  int
}

// Publisher renders coordinator updates into sensors and writes the changed
// ones to Home Assistant.
type Publisher struct {
	builder   *sensor.Builder
	writer    StateWriter
	sink      SnapshotSink
	rules     *config.EntityRules
	published *cache.LRUCache[string]
	limiter   *rate.Limiter
	config    PublisherConfig
	logger    *log.Logger
	now       func() time.Time

	// ready is set by the first successful refresh. Until then failed
	// refreshes publish nothing, so no entities exist while setup retries.
	ready atomic.Bool

	mu       sync.RWMutex
	latest   []sensor.State
	byEntity map[string]sensor.State
	lastAt   time.Time
}

// NewPublisher wires the publisher. sink and rules may be nil.
func NewPublisher(builder *sensor.Builder, writer StateWriter, sink SnapshotSink, rules *config.EntityRules, cfg PublisherConfig, logger *log.Logger) *Publisher {
	def := DefaultPublisherConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.StateRefreshTTL <= 0 {
		cfg.StateRefreshTTL = def.StateRefreshTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	burst := int(math.Ceil(cfg.RatePerSecond))
	return &Publisher{
		builder:   builder,
		writer:    writer,
		sink:      sink,
		rules:     rules,
		published: cache.NewLRUCache[string](cfg.CacheSize, cfg.StateRefreshTTL),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		config:    cfg,
		logger:    logger.WithComponent(log.ComponentPublisher),
		now:       time.Now,
		byEntity:  map[string]sensor.State{},
	}
}

// PublishedCache exposes the published-state cache so a cache.Manager can expire it.
func (p *Publisher) PublishedCache() *cache.LRUCache[string] {
	return p.published
}

// Listener adapts the publisher to Coordinator.Subscribe.
func (p *Publisher) Listener(ctx context.Context) func(Update) {
	return func(u Update) {
		if _, err := p.Publish(ctx, u); err != nil {
			p.logger.WarnContext(ctx, "Publish finished with errors", log.FieldOperation, log.OpPublish, log.FieldError, err)
		}
	}
}

// Publish builds the sensors for u, writes the ones that changed and, after a
// successful refresh, records a snapshot. Failed refreshes before the first
// success are ignored.
func (p *Publisher) Publish(ctx context.Context, u Update) (PublishResult, error) {
	if !u.Success && !p.ready.Load() {
		p.logger.DebugContext(ctx, "No successful refresh yet, nothing to publish",
			log.FieldOperation, log.OpPublish, log.FieldError, u.Err)
		return PublishResult{}, nil
	}
	if u.Success {
		p.ready.Store(true)
	}

	states := p.filter(p.builder.Build(ctx, u.Snapshot, u.Success))
	p.store(states)

	result, writeErr := p.write(ctx, states)

	p.logger.InfoContext(ctx, "Sensors published",
		log.FieldOperation, log.OpPublish,
		log.FieldCount, len(states),
		"written", result.Written,
		"skipped", result.Skipped,
		"failed", result.Failed)

	var sinkErr error
	if u.Success && p.sink != nil {
		sinkErr = p.record(ctx, states)
	}

	return result, errors.Join(writeErr, sinkErr)
}

func (p *Publisher) filter(states []sensor.State) []sensor.State {
	if p.rules == nil {
		return states
	}
	out := states[:0:0]
	for _, s := range states {
		if !p.rules.Allows(s.UniqueID) {
			continue
		}
		if name, ok := p.rules.NameFor(s.UniqueID); ok {
			s.Name = name
		}
		out = append(out, s)
	}
	return out
}

func (p *Publisher) store(states []sensor.State) {
	byEntity := make(map[string]sensor.State, len(states))
	for _, s := range states {
		byEntity[s.EntityID] = s
	}
	p.mu.Lock()
	p.latest = states
	p.byEntity = byEntity
	p.lastAt = p.now()
	p.mu.Unlock()
}

// fingerprint identifies what Home Assistant would show for s.
func fingerprint(s sensor.State) (string, error) {
	attrs, err := json.Marshal(s.HAAttributes())
	if err != nil {
		return "", err
	}
	return s.HAState() + "\x00" + string(attrs), nil
}

func (p *Publisher) write(ctx context.Context, states []sensor.State) (PublishResult, error) {
	var (
		mu     sync.Mutex
		result PublishResult
	)
	count := func(f func(r *PublishResult)) {
		mu.Lock()
		f(&result)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(p.config.Concurrency)

	for _, s := range states {
		fp, err := fingerprint(s)
		if err != nil {
			count(func(r *PublishResult) { r.Failed++ })
			metrics.IncStatePublish("error")
			p.logger.ErrorContext(ctx, "Cannot encode sensor attributes", log.FieldEntityID, s.EntityID, log.FieldError, err)
			continue
		}
		if prev, ok := p.published.Get(s.EntityID); ok && prev == fp {
			count(func(r *PublishResult) { r.Skipped++ })
			metrics.IncStatePublish("skipped")
			continue
		}

		g.Go(func() error {
			if err := p.limiter.Wait(ctx); err != nil {
				count(func(r *PublishResult) { r.Failed++ })
				return err
			}
			if err := p.writer.SetState(ctx, s.EntityID, s.HAState(), s.HAAttributes()); err != nil {
				count(func(r *PublishResult) { r.Failed++ })
				metrics.IncStatePublish("error")
				p.logger.WarnContext(ctx, "State write failed",
					log.FieldEntityID, s.EntityID,
					log.FieldError, err)
				return fmt.Errorf("write %s: %w", s.EntityID, err)
			}
			p.published.Set(s.EntityID, fp)
			count(func(r *PublishResult) { r.Written++ })
			metrics.IncStatePublish("success")
			return nil
		})
	}

	err := g.Wait()
	return result, err
}

func (p *Publisher) record(ctx context.Context, states []sensor.State) error {
	snap := core.SensorSnapshot{
		ID:      uuid.NewString(),
		TakenAt: p.now().UTC(),
	}
	for _, s := range states {
		if !s.Available {
			continue
		}
		snap.Readings = append(snap.Readings, core.ReadingOf(s.EntityID, s.State))
	}
	if err := p.sink.RecordSnapshot(ctx, snap); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record snapshot",
			log.FieldOperation, log.OpRecord,
			log.FieldSnapshotID, snap.ID,
			log.FieldError, err)
		return fmt.Errorf("record snapshot: %w", err)
	}
	p.logger.DebugContext(ctx, "Snapshot recorded", log.FieldSnapshotID, snap.ID, log.FieldCount, len(snap.Readings))
	return nil
}

// Latest returns the most recently built sensors sorted by entity ID.
func (p *Publisher) Latest() []sensor.State {
	p.mu.RLock()
	out := append([]sensor.State(nil), p.latest...)
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Sensor returns the most recent state of one entity.
func (p *Publisher) Sensor(entityID string) (sensor.State, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byEntity[entityID]
	return s, ok
}

// LastPublished is the time of the last publish pass.
func (p *Publisher) LastPublished() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastAt
}
