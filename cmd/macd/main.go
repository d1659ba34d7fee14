package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-macd/internal/backtest"
	"github.com/rxtech-lab/argo-macd/internal/backtest/engine"
	engine_v1 "github.com/rxtech-lab/argo-macd/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-macd/internal/logger"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/internal/version"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// overrides holds command line values that take precedence over the config file.
type overrides struct {
	capital     optional.Option[float64]
	chart       optional.Option[bool]
	pairing     optional.Option[string]
	parallelism optional.Option[int]
}

// buildConfig merges the config file content with command line overrides and returns
// the YAML passed to the engine.
func buildConfig(content string, o overrides) (string, error) {
	config, err := engine_v1.ParseConfig(content)
	if err != nil {
		return "", err
	}

	if o.capital.IsSome() {
		config.InitialCapital = o.capital
	}

	if o.chart.IsSome() {
		config.Chart = o.chart.Unwrap()
	}

	if o.pairing.IsSome() {
		mode, err := backtest.ParsePairingMode(o.pairing.Unwrap())
		if err != nil {
			return "", err
		}

		config.Pairing = mode
	}

	if o.parallelism.IsSome() {
		config.Parallelism = o.parallelism.Unwrap()
	}

	if err := config.Validate(); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	return string(data), nil
}

// printReport writes one row per data file with its average return and ending capital.
func printReport(w io.Writer, stats []types.RunStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Symbol", "Points", "Buys", "Sells", "Trades", "Win Rate", "Avg Return", "Ending Capital"})

	for _, s := range stats {
		if s.NoTrades {
			t.AppendRow(table.Row{s.Symbol, s.NumberOfPoints, s.NumberOfBuyEvents, s.NumberOfSellEvents, 0, "-", "no trades", "-"})

			continue
		}

		ending := "-"
		if s.EndingCapital != nil {
			ending = fmt.Sprintf("%.2f", *s.EndingCapital)
		}

		t.AppendRow(table.Row{
			s.Symbol,
			s.NumberOfPoints,
			s.NumberOfBuyEvents,
			s.NumberOfSellEvents,
			s.TradeResult.NumberOfTrades,
			fmt.Sprintf("%.2f%%", s.TradeResult.WinRate*100),
			fmt.Sprintf("%.4f%%", s.AverageReturn*100),
			ending,
		})
	}

	t.Render()
}

func newLogger(verbose bool) (*logger.Logger, error) {
	if verbose {
		return logger.NewLoggerWithLevel(zapcore.DebugLevel)
	}

	return logger.NewLoggerWithLevel(zapcore.WarnLevel)
}

// runAction is the core logic executed by the run command.
func runAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := newLogger(cmd.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync() //nolint:errcheck

	content := ""

	if configPath := cmd.String("config"); configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		content = string(data)
	}

	o := overrides{
		capital:     optional.None[float64](),
		chart:       optional.None[bool](),
		pairing:     optional.None[string](),
		parallelism: optional.None[int](),
	}

	if cmd.IsSet("capital") {
		o.capital = optional.Some(cmd.Float("capital"))
	}

	if cmd.IsSet("chart") {
		o.chart = optional.Some(cmd.Bool("chart"))
	}

	if cmd.IsSet("pairing") {
		o.pairing = optional.Some(cmd.String("pairing"))
	}

	if cmd.IsSet("parallelism") {
		o.parallelism = optional.Some(int(cmd.Int("parallelism")))
	}

	config, err := buildConfig(content, o)
	if err != nil {
		return err
	}

	e, err := engine_v1.NewMACDEngineV1(appLogger)
	if err != nil {
		return err
	}

	if err := e.Initialize(config); err != nil {
		return err
	}

	if err := e.SetDataPath(cmd.String("data")); err != nil {
		return err
	}

	if err := e.SetResultsFolder(cmd.String("results")); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onStart := engine.OnBacktestStartCallback(func(totalDataFiles int) error {
		bar = progressbar.Default(int64(totalDataFiles), "backtesting")

		return nil
	})
	onRunEnd := engine.OnRunEndCallback(func(dataFileIndex int, dataFilePath string, resultFolderPath string) {
		if bar != nil {
			_ = bar.Add(1)
		}
	})

	if err := e.Run(ctx, engine.LifecycleCallbacks{
		OnBacktestStart: &onStart,
		OnRunEnd:        &onRunEnd,
	}); err != nil {
		return err
	}

	printReport(os.Stdout, e.Results())

	return nil
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	config := engine_v1.EmptyConfig()

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if output := cmd.String("output"); output != "" {
		return os.WriteFile(output, []byte(schema), 0644)
	}

	fmt.Println(schema)

	return nil
}

func versionAction(ctx context.Context, cmd *cli.Command) error {
	fmt.Println(version.GetVersion())

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "macd",
		Usage: "Backtest MACD crossover signals over price series",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Derive MACD, detect crossovers and backtest every matching data file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Glob of CSV or Parquet files (e.g. `data/*.csv`)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the engine config YAML",
					},
					&cli.StringFlag{
						Name:    "results",
						Aliases: []string{"r"},
						Usage:   "Directory for derived series, stats and charts",
						Value:   "results",
					},
					&cli.FloatFlag{
						Name:  "capital",
						Usage: "Initial capital to compound through the trades",
					},
					&cli.BoolFlag{
						Name:  "chart",
						Usage: "Render a PNG chart per data file",
					},
					&cli.StringFlag{
						Name:  "pairing",
						Usage: fmt.Sprintf("Trade pairing mode (%s or %s)", backtest.PairingPositional, backtest.PairingAlternating),
					},
					&cli.IntFlag{
						Name:  "parallelism",
						Usage: "Number of data files processed at the same time (0 uses one per CPU)",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Enable debug logging",
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the engine config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the schema to this file instead of stdout",
					},
				},
				Action: schemaAction,
			},
			{
				Name:   "version",
				Usage:  "Print the engine version",
				Action: versionAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
