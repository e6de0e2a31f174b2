package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/observability"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/events"
)

// Evictor drops cached state derived from a stored dataset.
type Evictor interface {
	EvictHandle(handle string) bool
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
}

// Runner consumes dataset events and evicts the matching parse cache
// entries on this replica.
type Runner struct {
	log      *slog.Logger
	cfg      Config
	evict    Evictor
	ms       *metricSet
	ver      *versionDedupe
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

func NewRunner(cfg Config, ev Evictor, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:    opts.Logger,
		cfg:    cfg.withDefaults(),
		evict:  ev,
		ms:     newMetricSet(opts.Register),
		ver:    newVersionDedupe(8192),
		assign: map[int32]struct{}{},
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("dataset event runner disabled")
		return nil
	}
	if r.evict == nil {
		return fmt.Errorf("kafka runner: evictor dependency is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup:   r.onAssign,
		cleanup: func(sarama.ConsumerGroupSession) { r.clearAssign() },
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("dataset event runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("dataset event runner stopped")
}

// Readiness reports whether this replica currently owns partitions.
func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	slices.Sort(partitions)
	return true, partitions
}

func (r *Runner) onAssign(sess sarama.ConsumerGroupSession) {
	r.assignMu.Lock()
	defer r.assignMu.Unlock()
	r.assign = map[int32]struct{}{}
	for _, parts := range sess.Claims() {
		for _, p := range parts {
			r.assign[p] = struct{}{}
		}
	}
	r.assigned.Store(true)
}

func (r *Runner) clearAssign() {
	r.assignMu.Lock()
	defer r.assignMu.Unlock()
	r.assigned.Store(false)
	r.assign = map[int32]struct{}{}
}

func (r *Runner) handleMessage(_ context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	if !msg.Timestamp.IsZero() {
		r.ms.lagGauge.Set(time.Since(msg.Timestamp).Seconds())
	}

	ev, err := decode(msg.Value)
	if err != nil {
		// a malformed event can never succeed; skip it so the partition moves on
		r.ms.apply.WithLabelValues("invalid").Inc()
		observability.ObserveEvent("consume", err)
		r.log.Warn("dataset event skipped",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	defer func() { r.ms.proc.WithLabelValues(ev.Op).Observe(time.Since(start).Seconds()) }()

	observability.ObserveEvent("consume", nil)

	if !r.ver.shouldApply(ev.Handle, ev.Version) {
		r.ms.apply.WithLabelValues("skip_version").Inc()
		return nil
	}
	if r.evict.EvictHandle(ev.Handle) {
		r.ms.apply.WithLabelValues("evict").Inc()
	} else {
		r.ms.apply.WithLabelValues("noop").Inc()
	}
	r.log.Debug("dataset event applied", "op", ev.Op, "handle", ev.Handle, "version", ev.Version)
	return nil
}

func decode(b []byte) (events.Event, error) {
	var ev events.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return events.Event{}, fmt.Errorf("decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return events.Event{}, fmt.Errorf("validate: %w", err)
	}
	return ev, nil
}
