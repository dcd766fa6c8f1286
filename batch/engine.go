// Copyright (c) 2025 Neomantra Corp

package batch

import (
	"context"
	"log/slog"
	"sync"

	rangebar "github.com/rangebar-go/rangebar"
	"github.com/rangebar-go/rangebar/providers"
	"github.com/rangebar-go/rangebar/streaming"
)

// SourceFactory builds a fresh TickSource for a symbol, e.g. opening that
// symbol's archive file. Called once per (re)attempt.
type SourceFactory func(ctx context.Context, symbol string) (providers.TickSource, error)

// SinkFactory builds a fresh BarSink for a symbol, e.g. opening that
// symbol's output parquet file.
type SinkFactory func(symbol string) (streaming.BarSink, error)

// Config configures a batch run.
type Config struct {
	ThresholdTenthBp uint32
	Workers          int
	Logger           *slog.Logger
}

// Result is one symbol's outcome from a batch run.
type Result struct {
	Symbol string
	Bars   int64
	Stats  *SymbolStats
	Err    error
}

// Engine runs the streaming pipeline over many symbols concurrently, each
// symbol owning exactly one rangebar.Engine instance (parallelism lives
// above the per-symbol state machine, never inside it, per §5). Grounded on
// hist/batch.go's job-lifecycle tracking, generalized from a single remote
// batch job's states to a fixed worker pool draining a manifest's pending
// symbols.
type Engine struct {
	manifest      *Manifest
	sourceFactory SourceFactory
	sinkFactory   SinkFactory
	cfg           Config
	logger        *slog.Logger
}

// NewEngine builds a batch Engine backed by `manifest`.
func NewEngine(manifest *Manifest, sourceFactory SourceFactory, sinkFactory SinkFactory, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{
		manifest:      manifest,
		sourceFactory: sourceFactory,
		sinkFactory:   sinkFactory,
		cfg:           cfg,
		logger:        logger,
	}
}

// Run seeds the manifest with `symbols` (idempotent) and processes every
// pending/failed symbol with a bounded worker pool, returning one Result per
// symbol actually attempted this run (already-completed symbols from a prior
// run are skipped and not included).
func (e *Engine) Run(ctx context.Context, symbols []string) ([]Result, error) {
	for _, s := range symbols {
		if err := e.manifest.Seed(s); err != nil {
			return nil, err
		}
	}
	pending, err := e.manifest.Pending()
	if err != nil {
		return nil, err
	}

	jobs := make(chan string)
	results := make(chan Result)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				results <- e.processOne(ctx, symbol)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range pending {
			select {
			case jobs <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []Result
	for r := range results {
		out = append(out, r)
	}
	return out, ctx.Err()
}

func (e *Engine) processOne(ctx context.Context, symbol string) Result {
	if err := e.manifest.MarkRunning(symbol); err != nil {
		return Result{Symbol: symbol, Err: err}
	}

	source, err := e.sourceFactory(ctx, symbol)
	if err != nil {
		e.manifest.MarkFailed(symbol, err)
		return Result{Symbol: symbol, Err: err}
	}
	defer source.Close()

	sink, err := e.sinkFactory(symbol)
	if err != nil {
		e.manifest.MarkFailed(symbol, err)
		return Result{Symbol: symbol, Err: err}
	}

	collecting := &streaming.CollectingSink{}
	stats := newStatsSink(symbol)
	eng, err := streaming.NewEngine(source, e.cfg.ThresholdTenthBp, chainSinks(sink, collecting, stats), streaming.Config{Logger: e.logger})
	if err != nil {
		e.manifest.MarkFailed(symbol, err)
		return Result{Symbol: symbol, Err: err}
	}

	if err := eng.Run(ctx); err != nil {
		e.manifest.MarkFailed(symbol, err)
		return Result{Symbol: symbol, Err: err}
	}

	barsWritten := int64(len(collecting.Bars))
	if err := e.manifest.MarkCompleted(symbol, barsWritten); err != nil {
		return Result{Symbol: symbol, Err: err}
	}
	return Result{Symbol: symbol, Bars: barsWritten, Stats: stats.stats, Err: nil}
}

// multiSink fans every event out to the caller's real output sink plus any
// number of internal mirrors (a bar-count accumulator, a stats observer)
// so those mirrors can report on the run without the primary sink itself
// needing to track them.
type multiSink struct {
	primary streaming.BarSink
	mirrors []streaming.BarSink
}

func chainSinks(primary streaming.BarSink, mirrors ...streaming.BarSink) streaming.BarSink {
	return multiSink{primary: primary, mirrors: mirrors}
}

func (m multiSink) OnBar(bar rangebar.RangeBar) error {
	if err := m.primary.OnBar(bar); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.OnBar(bar); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) OnCheckpoint(cp rangebar.Checkpoint) error { return m.primary.OnCheckpoint(cp) }
func (m multiSink) OnAnomaly(s rangebar.AnomalySummary) error { return m.primary.OnAnomaly(s) }
func (m multiSink) OnStreamEnd() error {
	if err := m.primary.OnStreamEnd(); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.OnStreamEnd(); err != nil {
			return err
		}
	}
	return nil
}
