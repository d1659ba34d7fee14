package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-macd/internal/backtest/engine"
	"github.com/rxtech-lab/argo-macd/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-macd/internal/chart"
	"github.com/rxtech-lab/argo-macd/internal/logger"
	"github.com/rxtech-lab/argo-macd/internal/macd"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/internal/writer"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	statsFileName   = "stats.yaml"
	derivedFileName = "derived.csv"
	chartFileName   = "chart.png"
)

type MACDEngineV1 struct {
	config            MACDEngineV1Config
	dataPaths         []string
	resultsFolder     string
	log               *logger.Logger
	dataSourceFactory datasource.Factory
	results           []types.RunStats
	// callbackMu serializes lifecycle callbacks across parallel runs
	callbackMu sync.Mutex
}

// NewMACDEngineV1 creates an engine that logs with log. A nil log creates the default logger.
func NewMACDEngineV1(log *logger.Logger) (engine.Engine, error) {
	if log == nil {
		var err error

		log, err = logger.NewLogger()
		if err != nil {
			return nil, err
		}
	}

	return &MACDEngineV1{
		config:        EmptyConfig(),
		dataPaths:     nil,
		resultsFolder: "",
		log:           log,
		dataSourceFactory: func() (datasource.DataSource, error) {
			return datasource.NewDataSource("", log)
		},
		results: nil,
	}, nil
}

// Initialize implements engine.Engine.
func (b *MACDEngineV1) Initialize(config string) error {
	parsed, err := ParseConfig(config)
	if err != nil {
		b.log.Error("Failed to initialize engine", zap.Error(err))

		return err
	}

	b.config = parsed

	b.log.Debug("MACD engine initialized",
		zap.Int("fast_period", b.config.FastPeriod),
		zap.Int("slow_period", b.config.SlowPeriod),
		zap.Int("signal_period", b.config.SignalPeriod),
		zap.String("pairing", string(b.config.Pairing)),
		zap.Int("parallelism", b.config.WorkerLimit()),
	)

	return nil
}

// SetDataPath implements engine.Engine.
func (b *MACDEngineV1) SetDataPath(path string) error {
	// use glob to get all the files that match the path
	files, err := filepath.Glob(path)
	if err != nil {
		b.log.Error("Failed to set data path",
			zap.String("path", path),
			zap.Error(err),
		)

		return errors.Wrapf(errors.ErrCodeBacktestDataPathError, err, "invalid data path %s", path)
	}

	absolutePaths := make([]string, len(files))

	for i, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			b.log.Error("Failed to get absolute path",
				zap.String("path", file),
				zap.Error(err),
			)

			return errors.Wrapf(errors.ErrCodeBacktestDataPathError, err, "invalid data path %s", file)
		}

		absolutePaths[i] = absPath
	}

	b.dataPaths = absolutePaths
	b.log.Debug("Data paths set",
		zap.Strings("files", absolutePaths),
	)

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *MACDEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder
	b.log.Debug("Results folder set",
		zap.String("folder", folder),
	)

	return nil
}

// SetDataSourceFactory implements engine.Engine.
func (b *MACDEngineV1) SetDataSourceFactory(factory datasource.Factory) error {
	if factory == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "data source factory cannot be nil")
	}

	b.dataSourceFactory = factory

	return nil
}

// Results implements engine.Engine.
func (b *MACDEngineV1) Results() []types.RunStats {
	return append([]types.RunStats{}, b.results...)
}

// GetConfigSchema implements engine.Engine.
func (b *MACDEngineV1) GetConfigSchema() (string, error) {
	config := b.config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to generate schema", err)
	}

	return schema, nil
}

// Run implements engine.Engine.
func (b *MACDEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) (err error) {
	if callbacks.OnBacktestEnd != nil {
		defer func() {
			(*callbacks.OnBacktestEnd)(err)
		}()
	}

	if err := b.preRunCheck(); err != nil {
		return err
	}

	b.results = nil

	// remove results folder if it exists
	if err := os.RemoveAll(b.resultsFolder); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to clean results folder", err)
	}

	if err := os.MkdirAll(b.resultsFolder, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create results folder", err)
	}

	if callbacks.OnBacktestStart != nil {
		if err := (*callbacks.OnBacktestStart)(len(b.dataPaths)); err != nil {
			return err
		}
	}

	folders := resultFolders(b.resultsFolder, b.dataPaths)
	stats := make([]types.RunStats, len(b.dataPaths))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.config.WorkerLimit())

	for i, dataPath := range b.dataPaths {
		if err := groupCtx.Err(); err != nil {
			break
		}

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			runStats, err := b.runFile(groupCtx, i, dataPath, folders[i], callbacks)
			if err != nil {
				return err
			}

			stats[i] = runStats

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		b.log.Error("Backtest aborted", zap.Error(err))

		return err
	}

	// a cancellation between the last check and the final Go call leaves files unprocessed
	if err := ctx.Err(); err != nil {
		return err
	}

	b.results = stats

	if err := types.WriteRunStats(filepath.Join(b.resultsFolder, statsFileName), stats); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write stats", err)
	}

	return nil
}

func (b *MACDEngineV1) runFile(ctx context.Context, index int, dataPath string, resultFolder string, callbacks engine.LifecycleCallbacks) (types.RunStats, error) {
	runID := uuid.New().String()

	source, err := b.dataSourceFactory()
	if err != nil {
		return types.RunStats{}, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to create data source", err)
	}
	defer source.Close()

	if err := source.Initialize(dataPath); err != nil {
		return types.RunStats{}, errors.Wrapf(errors.ErrCodeBacktestDataPathError, err, "failed to initialize data source for %s", dataPath)
	}

	count, err := source.Count()
	if err != nil {
		return types.RunStats{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to get data count", err)
	}

	if callbacks.OnRunStart != nil {
		b.callbackMu.Lock()
		err := (*callbacks.OnRunStart)(runID, index, dataPath, count)
		b.callbackMu.Unlock()

		if err != nil {
			return types.RunStats{}, err
		}
	}

	b.log.Debug("Running backtest",
		zap.String("run_id", runID),
		zap.String("data", dataPath),
		zap.String("result", resultFolder),
		zap.Int("points", count),
	)

	series, err := source.ReadSeries(ctx, b.config.TimeField, b.config.ValueField)
	if err != nil {
		return types.RunStats{}, errors.Wrapf(errors.GetCode(err), err, "failed to read %s", dataPath)
	}

	opts := b.config.IndexOptions()
	opts.Logger = b.log

	idx, err := macd.NewIndex(series, opts)
	if err != nil {
		return types.RunStats{}, errors.Wrapf(errors.GetCode(err), err, "failed to build index for %s", dataPath)
	}

	stats := types.RunStats{
		ID:                 runID,
		Timestamp:          time.Now(),
		Symbol:             symbolOf(dataPath),
		DataPath:           dataPath,
		NumberOfPoints:     idx.Len(),
		NumberOfBuyEvents:  len(idx.BuyPoints()),
		NumberOfSellEvents: len(idx.SellPoints()),
		Pairing:            string(idx.Pairing()),
		InitialCapital:     types.OptionToPointer(b.config.InitialCapital),
		DerivedFilePath:    filepath.Join(resultFolder, derivedFileName),
	}

	result, err := idx.Backtest(b.config.InitialCapital)

	switch {
	case errors.IsInsufficientDataError(err):
		b.log.Warn("No trades to backtest",
			zap.String("data", dataPath),
			zap.Int("buys", stats.NumberOfBuyEvents),
			zap.Int("sells", stats.NumberOfSellEvents),
		)

		stats.NoTrades = true
	case err != nil:
		return types.RunStats{}, errors.Wrapf(errors.GetCode(err), err, "failed to backtest %s", dataPath)
	default:
		stats.AverageReturn = result.AverageReturn
		stats.EndingCapital = types.OptionToPointer(result.EndingCapital)
		stats.TradeResult = result.TradeResult
	}

	if err := writer.WriteDerivedCSV(stats.DerivedFilePath, idx); err != nil {
		return types.RunStats{}, err
	}

	if b.config.Chart {
		chartPath := filepath.Join(resultFolder, chartFileName)

		err := chart.RenderMACDFile(chartPath, stats.Symbol, idx)

		switch {
		case errors.IsInsufficientDataError(err):
			b.log.Warn("Skipping chart", zap.String("data", dataPath), zap.Error(err))
		case err != nil:
			return types.RunStats{}, err
		default:
			stats.ChartFilePath = chartPath
		}
	}

	if err := types.WriteRunStats(filepath.Join(resultFolder, statsFileName), []types.RunStats{stats}); err != nil {
		return types.RunStats{}, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write stats", err)
	}

	b.log.Info("Backtest finished",
		zap.String("symbol", stats.Symbol),
		zap.Bool("no_trades", stats.NoTrades),
		zap.Float64("average_return", stats.AverageReturn),
	)

	if callbacks.OnRunEnd != nil {
		b.callbackMu.Lock()
		(*callbacks.OnRunEnd)(index, dataPath, resultFolder)
		b.callbackMu.Unlock()
	}

	return stats, nil
}

func (b *MACDEngineV1) preRunCheck() error {
	if len(b.dataPaths) == 0 {
		b.log.Error("No data paths loaded")

		return errors.New(errors.ErrCodeBacktestNoDataPaths, "no data paths loaded")
	}

	if b.resultsFolder == "" {
		b.log.Error("No results folder set")

		return errors.New(errors.ErrCodeBacktestNoResultsDir, "no results folder set")
	}

	if b.dataSourceFactory == nil {
		b.log.Error("No data source factory set")

		return errors.New(errors.ErrCodeBacktestInitFailed, "no data source factory set")
	}

	return nil
}
