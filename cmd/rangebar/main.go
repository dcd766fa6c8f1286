// Copyright (c) 2025 Neomantra Corp

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	rangebar "github.com/rangebar-go/rangebar"
	"github.com/rangebar-go/rangebar/batch"
	"github.com/rangebar-go/rangebar/export"
	"github.com/rangebar-go/rangebar/internal/tui"
	"github.com/rangebar-go/rangebar/providers"
	"github.com/rangebar-go/rangebar/streaming"

	"github.com/charmbracelet/huh"
	"github.com/relvacode/iso8601"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

///////////////////////////////////////////////////////////////////////////////

var (
	dataSourceStr   string
	thresholdStr    string // parsed via spf13/cast to allow "25bp"/"0.25%"-style input
	inputPath       string
	outputPath      string
	outputFormat    string // json | csv | parquet
	symbolsFile     string
	manifestPath    string
	workers         int
	checkpointEvery int
	circuitBreaker  int
	useTUI          bool
	startStr        string // ISO-8601, e.g. "2026-01-01T00:00:00Z"
	endStr          string
)

// parseTimeRangeUs parses startStr/endStr (if set) via relvacode/iso8601,
// mirroring cmd/dbn-go-hist/main.go's date-range flag parsing, and returns
// their microsecond-since-epoch values (0 meaning unbounded).
func parseTimeRangeUs() (startUs, endUs int64) {
	if startStr != "" {
		t, err := iso8601.ParseString(startStr)
		requireNoError(err)
		startUs = t.UnixMicro()
	}
	if endStr != "" {
		t, err := iso8601.ParseString(endStr)
		requireNoError(err)
		endUs = t.UnixMicro()
	}
	return startUs, endUs
}

// requireNoError prints err and exits if non-nil, mirroring
// cmd/dbn-go-hist/main.go's requireNoError helper.
func requireNoError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

// requireThresholdTenthBp parses thresholdStr into tenths of a basis point,
// accepting either a bare integer (already in tenths of a bp) or a
// percent/bp suffixed form via spf13/cast's permissive numeric coercion.
func requireThresholdTenthBp() uint32 {
	s := strings.TrimSpace(thresholdStr)
	if s == "" {
		var err error
		s, err = promptThreshold()
		requireNoError(err)
	}
	switch {
	case strings.HasSuffix(s, "%"):
		pct, err := cast.ToFloat64E(strings.TrimSuffix(s, "%"))
		requireNoError(err)
		return uint32(pct * 1000)
	case strings.HasSuffix(s, "bp"):
		bp, err := cast.ToFloat64E(strings.TrimSuffix(s, "bp"))
		requireNoError(err)
		return uint32(bp * 10)
	default:
		v, err := cast.ToUint32E(s)
		requireNoError(err)
		return v
	}
}

func promptThreshold() (string, error) {
	var s string
	err := huh.NewInput().
		Title("Breach threshold").
		Description("e.g. 25bp, 0.25%, or a raw tenths-of-a-bp integer").
		Value(&s).
		Run()
	return s, err
}

// loadSymbolFile loads a newline-delimited symbol list, skipping blank lines
// and '#'-prefixed comments, mirroring cmd/dbn-go-hist/main.go's
// loadSymbolFile.
func loadSymbolFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var symbols []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	return symbols, sc.Err()
}

func requireSymbolArgs(args []string) []string {
	result := append([]string{}, args...)
	if symbolsFile != "" {
		symbols, err := loadSymbolFile(symbolsFile)
		requireNoError(err)
		result = append(result, symbols...)
	}
	if len(result) == 0 {
		var selected []string
		options, err := tier1Options()
		requireNoError(err)
		err = huh.NewMultiSelect[string]().
			Title("Select symbols").
			Options(options...).
			Value(&selected).
			Run()
		requireNoError(err)
		result = selected
	}
	if len(result) == 0 {
		fmt.Fprintln(os.Stderr, "must pass symbols as arguments, --file, or select interactively")
		os.Exit(1)
	}
	return result
}

func tier1Options() ([]huh.Option[string], error) {
	ds, err := rangebar.DataSourceFromString(dataSourceStr)
	if err != nil {
		return nil, err
	}
	var opts []huh.Option[string]
	for _, sym := range rangebar.Tier1Symbols(ds) {
		opts = append(opts, huh.NewOption(sym, sym))
	}
	return opts, nil
}

///////////////////////////////////////////////////////////////////////////////

// openFileSource opens `<inputPath>/<symbol>.ndjson` (or inputPath itself, if
// it names a file rather than a directory) as a providers.TickSource.
func openFileSource(symbol string) (providers.TickSource, error) {
	ds, err := rangebar.DataSourceFromString(dataSourceStr)
	if err != nil {
		return nil, err
	}
	path := inputPath
	if info, statErr := os.Stat(inputPath); statErr == nil && info.IsDir() {
		path = filepath.Join(inputPath, symbol+".ndjson")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rangebar: open archive for %s: %w", symbol, err)
	}
	reader := providers.NewJsonFileReader(f)
	source, err := providers.NewAdapter(ds, symbol, reader.Next)
	if err != nil {
		return nil, err
	}
	if startStr != "" || endStr != "" {
		startUs, endUs := parseTimeRangeUs()
		source = providers.NewTimeRangeFilter(source, startUs, endUs)
	}
	return source, nil
}

// buildSink opens `<outputPath>/<symbol>.<outputFormat>` and wraps it with
// the matching export writer.
func buildSink(symbol string) (streaming.BarSink, error) {
	ext := outputFormat
	path := filepath.Join(outputPath, symbol+"."+ext)
	switch outputFormat {
	case "json":
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		return export.NewJsonWriter(f, symbol), nil
	case "csv":
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		return export.NewCsvWriter(f, symbol), nil
	case "parquet":
		return export.NewParquetWriter(path, symbol)
	default:
		return nil, fmt.Errorf("rangebar: unknown output format %q", outputFormat)
	}
}

///////////////////////////////////////////////////////////////////////////////

var rootCmd = &cobra.Command{
	Use:   "rangebar",
	Short: "rangebar builds breach-based OHLCV range bars from tick data.",
	Long:  "rangebar builds breach-based OHLCV range bars from tick data.",
}

var streamCmd = &cobra.Command{
	Use:     "stream <symbol>",
	Aliases: []string{"s"},
	Short:   "Streams a single symbol's ticks into range bars.",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		symbol := args[0]
		thresholdTenthBp := requireThresholdTenthBp()

		source, err := openFileSource(symbol)
		requireNoError(err)
		defer source.Close()

		sink, err := buildSink(symbol)
		requireNoError(err)

		eng, err := streaming.NewEngine(source, thresholdTenthBp, sink, streaming.Config{
			CircuitBreakerThreshold: circuitBreaker,
			CheckpointEvery:         checkpointEvery,
			Logger:                  slog.Default(),
		})
		requireNoError(err)

		err = eng.Run(cmd.Context())
		requireNoError(err)

		snap := eng.Metrics().Snapshot()
		fmt.Fprintf(os.Stdout, "%s: %d ticks, %d bars, %d producer errors\n",
			symbol, snap.TicksProcessed, snap.BarsEmitted, snap.ProducerErrors)
	},
}

var batchCmd = &cobra.Command{
	Use:     "batch [symbols...]",
	Aliases: []string{"b"},
	Short:   "Runs the breach state machine over many symbols concurrently.",
	Run: func(cmd *cobra.Command, args []string) {
		symbols := requireSymbolArgs(args)
		thresholdTenthBp := requireThresholdTenthBp()

		manifest, err := batch.OpenManifest(manifestPath)
		requireNoError(err)
		defer manifest.Close()

		eng := batch.NewEngine(manifest,
			func(ctx context.Context, symbol string) (providers.TickSource, error) {
				return openFileSource(symbol)
			},
			buildSink,
			batch.Config{ThresholdTenthBp: thresholdTenthBp, Workers: workers, Logger: slog.Default()},
		)

		if useTUI {
			for _, s := range symbols {
				requireNoError(manifest.Seed(s))
			}
			done := make(chan error, 1)
			go func() {
				_, runErr := eng.Run(cmd.Context(), symbols)
				done <- runErr
			}()
			tuiErr := tui.Run(tui.Config{Manifest: manifest, Total: len(symbols)})
			requireNoError(<-done)
			requireNoError(tuiErr)
			return
		}

		results, err := eng.Run(cmd.Context(), symbols)
		requireNoError(err)
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(os.Stderr, "%s: FAILED: %s\n", r.Symbol, r.Err.Error())
			} else {
				fmt.Fprintf(os.Stdout, "%s: %d bars\n", r.Symbol, r.Bars)
				if r.Stats != nil && r.Stats.BarCount > 0 {
					fmt.Fprintf(os.Stdout, "  price  mean=%.8f stddev=%.8f min=%.8f max=%.8f\n",
						r.Stats.Price.Mean(), r.Stats.Price.StdDev(), r.Stats.Price.Min, r.Stats.Price.Max)
					fmt.Fprintf(os.Stdout, "  volume mean=%.8f stddev=%.8f min=%.8f max=%.8f\n",
						r.Stats.Volume.Mean(), r.Stats.Volume.StdDev(), r.Stats.Volume.Min, r.Stats.Volume.Max)
					fmt.Fprintf(os.Stdout, "  duration(us) mean=%.2f stddev=%.2f min=%.2f max=%.2f\n",
						r.Stats.Duration.Mean(), r.Stats.Duration.StdDev(), r.Stats.Duration.Min, r.Stats.Duration.Max)
				}
			}
		}
	},
}

var checkpointInspectCmd = &cobra.Command{
	Use:   "checkpoint-inspect <file>",
	Short: "Prints a checkpoint file's fields.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cp, err := rangebar.ReadCheckpointFile(args[0])
		requireNoError(err)
		fmt.Printf("version:            %d\n", cp.Version)
		fmt.Printf("symbol:             %s\n", cp.Symbol)
		fmt.Printf("threshold_tenth_bp: %d\n", cp.ThresholdTenthBp)
		fmt.Printf("last_timestamp_us:  %d\n", cp.LastTimestampUs)
		fmt.Printf("has_in_progress:    %v\n", cp.InProgressBar != nil)
		if cp.InProgressBar != nil {
			b := cp.InProgressBar
			fmt.Printf("  open:  %s\n", b.Open)
			fmt.Printf("  high:  %s\n", b.High)
			fmt.Printf("  low:   %s\n", b.Low)
			fmt.Printf("  close: %s\n", b.Close)
		}
		fmt.Printf("price_window_hash:  %d\n", cp.PriceWindowHash)
		fmt.Printf("gaps_detected:      %d\n", cp.Anomalies.GapsDetected)
		fmt.Printf("overlaps_detected:  %d\n", cp.Anomalies.OverlapsDetected)
		fmt.Printf("timestamp_anomalies:%d\n", cp.Anomalies.TimestampAnomalies)
	},
}

///////////////////////////////////////////////////////////////////////////////

func main() {
	rootCmd.PersistentFlags().StringVarP(&dataSourceStr, "source", "S", "crypto_spot", "Data source: crypto_spot, crypto_linear_futures, crypto_inverse_futures, forex")
	rootCmd.PersistentFlags().StringVarP(&thresholdStr, "threshold", "t", "", "Breach threshold, e.g. 25bp, 0.25%, or a raw tenths-of-a-bp integer")
	rootCmd.PersistentFlags().StringVar(&startStr, "start", "", "ISO-8601 start timestamp; ticks before this are skipped")
	rootCmd.PersistentFlags().StringVar(&endStr, "end", "", "ISO-8601 end timestamp; the stream stops once reached")

	rootCmd.AddCommand(streamCmd)
	streamCmd.Flags().StringVarP(&inputPath, "input", "i", "-", "NDJSON archive file for the symbol")
	streamCmd.Flags().StringVarP(&outputPath, "output", "o", ".", "Output directory")
	streamCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json, csv, parquet")
	streamCmd.Flags().IntVarP(&checkpointEvery, "checkpoint-every", "", 0, "Emit a checkpoint every N closed bars (0 disables)")
	streamCmd.Flags().IntVarP(&circuitBreaker, "circuit-breaker", "", 5, "Consecutive producer errors before aborting the stream")

	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&inputPath, "input", "i", ".", "Directory of <symbol>.ndjson archive files")
	batchCmd.Flags().StringVarP(&outputPath, "output", "o", ".", "Output directory")
	batchCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json, csv, parquet")
	batchCmd.Flags().StringVarP(&symbolsFile, "file", "F", "", "Newline-delimited symbol file (# is comment)")
	batchCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "rangebar-manifest.duckdb", "Resumable manifest database path")
	batchCmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of concurrent symbol workers")
	batchCmd.Flags().BoolVarP(&useTUI, "tui", "", false, "Show a live progress dashboard while the batch runs")

	rootCmd.AddCommand(checkpointInspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
