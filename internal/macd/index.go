package macd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-macd/internal/backtest"
	"github.com/rxtech-lab/argo-macd/internal/indicator"
	"github.com/rxtech-lab/argo-macd/internal/logger"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
	"go.uber.org/zap"
)

// timeLayouts are tried in order when a time column holds strings.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Options configures the MACD pipeline of an Index.
type Options struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
	Pairing      backtest.PairingMode
	Logger       *logger.Logger
}

// DefaultOptions returns MACD(12, 26, 9) with positional pairing.
func DefaultOptions() Options {
	return Options{
		FastPeriod:   indicator.DefaultFastPeriod,
		SlowPeriod:   indicator.DefaultSlowPeriod,
		SignalPeriod: indicator.DefaultSignalPeriod,
		Pairing:      backtest.PairingPositional,
	}
}

// Index holds a price series together with its derived MACD series and crossover events.
// It is immutable after construction and shares no state with other instances.
type Index struct {
	series  types.TimeSeries
	derived types.DerivedSeries
	buys    []int
	sells   []int

	backtester *backtest.Backtester
	log        *logger.Logger
}

// NewIndex copies series, derives the MACD pipeline and detects crossovers.
func NewIndex(series types.TimeSeries, opts Options) (*Index, error) {
	if series.Len() == 0 {
		return nil, errors.NewInsufficientDataError(1, 0, "", "series must contain at least one point")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	m := indicator.NewMACD()
	if err := m.Config(opts.FastPeriod, opts.SlowPeriod, opts.SignalPeriod); err != nil {
		return nil, err
	}

	pairing, err := backtest.ParsePairingMode(string(opts.Pairing))
	if err != nil {
		return nil, err
	}

	owned := series.Clone()
	derived := m.Derive(owned.Values())
	buys, sells := indicator.DetectCrossovers(derived.MACD, derived.Signal)

	log.Debug("Derived MACD index",
		zap.Int("points", owned.Len()),
		zap.Int("buys", len(buys)),
		zap.Int("sells", len(sells)),
	)

	return &Index{
		series:     owned,
		derived:    derived,
		buys:       buys,
		sells:      sells,
		backtester: backtest.NewBacktester(log, pairing),
		log:        log,
	}, nil
}

// NewIndexFromColumns builds an Index from tabular data keyed by column name.
// It returns a MissingFieldError when timeField or valueField is absent.
func NewIndexFromColumns(columns map[string][]any, timeField, valueField string, opts Options) (*Index, error) {
	available := make([]string, 0, len(columns))
	for name := range columns {
		available = append(available, name)
	}

	timeColumn, ok := columns[timeField]
	if !ok {
		return nil, errors.NewMissingFieldError(timeField, available)
	}

	valueColumn, ok := columns[valueField]
	if !ok {
		return nil, errors.NewMissingFieldError(valueField, available)
	}

	if len(timeColumn) != len(valueColumn) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"column %q has %d rows but column %q has %d", timeField, len(timeColumn), valueField, len(valueColumn))
	}

	times := make([]time.Time, len(timeColumn))
	values := make([]float64, len(valueColumn))

	for i := range timeColumn {
		t, err := toTime(timeColumn[i])
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidType, err, "row %d of %q", i, timeField)
		}

		v, err := toFloat(valueColumn[i])
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidType, err, "row %d of %q", i, valueField)
		}

		times[i] = t
		values[i] = v
	}

	return NewIndex(types.NewTimeSeries(times, values), opts)
}

// Len returns the number of points in the series.
func (x *Index) Len() int {
	return x.series.Len()
}

// Series returns a copy of the input series.
func (x *Index) Series() types.TimeSeries {
	return x.series.Clone()
}

// Derived returns a copy of the derived series.
func (x *Index) Derived() types.DerivedSeries {
	return x.derived.Clone()
}

// BuyPoints returns the ascending buy event positions.
func (x *Index) BuyPoints() []int {
	return append([]int{}, x.buys...)
}

// SellPoints returns the ascending sell event positions.
func (x *Index) SellPoints() []int {
	return append([]int{}, x.sells...)
}

// Events returns buy and sell events merged in position order.
func (x *Index) Events() []types.CrossoverEvent {
	return indicator.MergeEvents(x.buys, x.sells, x.series.Times())
}

// Pairing returns the pairing mode used by Backtest.
func (x *Index) Pairing() backtest.PairingMode {
	return x.backtester.Mode()
}

// Backtest pairs the stored events into trades executed one period after each event.
func (x *Index) Backtest(initialCapital optional.Option[float64]) (types.BacktestResult, error) {
	return x.backtester.Run(x.series, x.buys, x.sells, initialCapital)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}

		return time.Time{}, fmt.Errorf("cannot parse %q as time", t)
	default:
		return time.Time{}, fmt.Errorf("unsupported time type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int:
		return float64(f), nil
	case int32:
		return float64(f), nil
	case int64:
		return float64(f), nil
	case string:
		return strconv.ParseFloat(f, 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
