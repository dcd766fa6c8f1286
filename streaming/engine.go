// Copyright (c) 2025 Neomantra Corp

package streaming

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	rangebar "github.com/rangebar-go/rangebar"
	"github.com/rangebar-go/rangebar/providers"
)

// defaultBufferCapacity is §4.4's default tick-buffer capacity.
const defaultBufferCapacity = 10_000

// defaultMetricEmitInterval is used when Config.MetricEmitInterval is zero;
// a sink-side convenience cadence, not a core invariant (§4.4).
const defaultMetricEmitInterval = 5 * time.Second

// Config configures a streaming Engine run.
type Config struct {
	// CircuitBreakerThreshold is the number of consecutive producer errors
	// that opens the breaker; 0 disables circuit breaking.
	CircuitBreakerThreshold int
	// CheckpointEvery, if > 0, emits a checkpoint to the sink after every
	// N closed bars in addition to the final one at stream end.
	CheckpointEvery int
	// BufferCapacity bounds the tick buffer between the producer and the
	// state machine (§4.4, default 10,000). <= 0 uses the default.
	BufferCapacity int
	// LowWaterMark is the queue depth the buffer must drain to before a
	// producer paused by backpressure resumes pulling. <= 0 defaults to
	// half of BufferCapacity.
	LowWaterMark int
	// MetricEmitInterval controls how often Run logs a metrics snapshot
	// (§4.4 "emission cadence is controlled by the metric-emit interval
	// parameter"). <= 0 uses defaultMetricEmitInterval.
	MetricEmitInterval time.Duration
	Logger             *slog.Logger
}

// Engine runs rangebar.Engine against a single providers.TickSource,
// forwarding closed bars to a BarSink one at a time (§4.4: atomic output,
// single-threaded-per-symbol — parallelism lives above this type, in the
// batch engine, never inside it). Grounded on live/live.go's connect/pull
// loop shape and internal/tui/download_manager.go's bounded-work/backpressure
// mechanics, generalized from a DataBento session to a generic TickSource.
type Engine struct {
	core    *rangebar.Engine
	source  providers.TickSource
	sink    BarSink
	breaker *CircuitBreaker
	metrics Metrics
	cfg     Config
	logger  *slog.Logger

	lastAnomalies rangebar.AnomalySummary
}

// NewEngine builds a streaming Engine for `source`, running the core state
// machine at `thresholdTenthBp` and forwarding output to `sink`.
func NewEngine(source providers.TickSource, thresholdTenthBp uint32, sink BarSink, cfg Config) (*Engine, error) {
	core, err := rangebar.NewEngine(source.Symbol(), thresholdTenthBp)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		core:    core,
		source:  source,
		sink:    sink,
		breaker: NewCircuitBreaker(cfg.CircuitBreakerThreshold),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Metrics returns the engine's observable counters.
func (e *Engine) Metrics() *Metrics { return &e.metrics }

// Run pulls ticks from the source until it's exhausted (io.EOF), ctx is
// canceled, or the circuit breaker opens, forwarding every closed bar to the
// sink as it's produced. Returns rangebar.ErrCircuitOpen if the breaker
// trips. Ticks are pulled by a dedicated producer goroutine into a bounded
// buffer (§4.4); this goroutine is the sole consumer, so the core state
// machine is still touched by exactly one goroutine at a time (§5).
func (e *Engine) Run(ctx context.Context) error {
	capacity := e.cfg.BufferCapacity
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}
	lowWaterMark := e.cfg.LowWaterMark
	if lowWaterMark <= 0 || lowWaterMark >= capacity {
		lowWaterMark = capacity / 2
	}
	buf := newTickBuffer(capacity, lowWaterMark)

	done := make(chan struct{})
	defer close(done)
	go e.runMetricsTicker(ctx, done)
	go e.runProducer(ctx, buf)

	closedSinceCheckpoint := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, ok := buf.pop()
		if !ok {
			return ctx.Err()
		}
		if item.err != nil {
			if errors.Is(item.err, io.EOF) {
				return e.finish()
			}
			if errors.Is(item.err, rangebar.ErrCircuitOpen) {
				return item.err
			}
			e.logger.Warn("producer error, continuing", "symbol", e.core.Symbol(), "error", item.err)
			continue
		}

		bar, err := e.core.ProcessOne(item.tick)
		if err != nil {
			return err
		}
		if bar == nil {
			continue
		}
		e.metrics.BarsEmitted.Add(1)
		if err := e.sink.OnBar(*bar); err != nil {
			return err
		}

		if summary := e.core.Anomalies(); summary != e.lastAnomalies {
			if err := e.sink.OnAnomaly(summary); err != nil {
				return err
			}
			e.lastAnomalies = summary
		}

		closedSinceCheckpoint++
		if e.cfg.CheckpointEvery > 0 && closedSinceCheckpoint >= e.cfg.CheckpointEvery {
			closedSinceCheckpoint = 0
			if err := e.emitCheckpoint(); err != nil {
				return err
			}
		}
	}
}

// runProducer pulls ticks from the source and pushes them into buf, applying
// the circuit breaker's pull-suspension at the same point the single-
// threaded loop used to: immediately before each pull. It is the only
// goroutine that touches e.source and e.breaker's write path.
func (e *Engine) runProducer(ctx context.Context, buf *tickBuffer) {
	for {
		if ctx.Err() != nil {
			buf.close()
			return
		}
		if e.breaker.Open() {
			e.logger.Warn("circuit open, stopping stream", "symbol", e.core.Symbol())
			buf.push(tickOrErr{err: rangebar.ErrCircuitOpen})
			buf.close()
			return
		}

		tick, err := e.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				buf.push(tickOrErr{err: err})
				buf.close()
				return
			}
			e.metrics.ProducerErrors.Add(1)
			if e.breaker.RecordFailure() {
				e.metrics.CircuitOpens.Add(1)
				e.metrics.CircuitBreakerOpen.Store(true)
				continue // loop back around to the Open() check above
			}
			buf.push(tickOrErr{err: err})
			continue
		}
		e.breaker.RecordSuccess()
		e.metrics.CircuitBreakerOpen.Store(false)
		e.metrics.TicksProcessed.Add(1)
		buf.push(tickOrErr{tick: tick})
	}
}

// runMetricsTicker logs a metrics snapshot every MetricEmitInterval until
// Run returns or ctx is canceled. Metrics emission is a sink-side
// convenience, never required for correctness (§4.4).
func (e *Engine) runMetricsTicker(ctx context.Context, done <-chan struct{}) {
	interval := e.cfg.MetricEmitInterval
	if interval <= 0 {
		interval = defaultMetricEmitInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			snap := e.metrics.Snapshot()
			e.logger.Info("streaming metrics",
				"symbol", e.core.Symbol(),
				"ticks_processed", snap.TicksProcessed,
				"bars_emitted", snap.BarsEmitted,
				"producer_errors", snap.ProducerErrors,
				"circuit_breaker_open", snap.CircuitBreakerOpen,
			)
		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}

func (e *Engine) emitCheckpoint() error {
	cp := e.core.TakeCheckpoint()
	e.metrics.CheckpointsTaken.Add(1)
	return e.sink.OnCheckpoint(cp)
}

func (e *Engine) finish() error {
	if err := e.emitCheckpoint(); err != nil {
		return err
	}
	return e.sink.OnStreamEnd()
}
