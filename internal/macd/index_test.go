package macd

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-macd/internal/backtest"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/mocks"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type IndexTestSuite struct {
	suite.Suite
}

func TestIndexSuite(t *testing.T) {
	suite.Run(t, new(IndexTestSuite))
}

func seriesOf(values ...float64) types.TimeSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	series := make(types.TimeSeries, len(values))
	for i, v := range values {
		series[i] = types.Point{Time: start.AddDate(0, 0, i), Value: v}
	}

	return series
}

func repeat(v float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}

	return values
}

// dipSeries is flat, dips to 5, recovers to 12 and stays there.
func dipSeries() types.TimeSeries {
	values := repeat(10, 30)
	values = append(values, 9, 8, 7, 6, 5, 6, 7, 8, 9, 10, 11, 12)
	values = append(values, repeat(12, 20)...)

	return seriesOf(values...)
}

func (suite *IndexTestSuite) TestDipScenario() {
	index, err := NewIndex(dipSeries(), DefaultOptions())
	suite.Require().NoError(err)

	suite.Equal([]int{39}, index.BuyPoints())
	suite.Equal([]int{56}, index.SellPoints())

	events := index.Events()
	suite.Require().Len(events, 2)
	suite.Equal(types.EventTypeBuy, events[0].Type)
	suite.Equal(39, events[0].Position)
	suite.Equal(dipSeries()[39].Time, events[0].Time)
	suite.Equal(types.EventTypeSell, events[1].Type)

	// buy executes at 40 (11), sell at 57 (12)
	result, err := index.Backtest(optional.Some(1000.0))
	suite.NoError(err)
	suite.Require().Len(result.Trades, 1)
	suite.InDelta(1.0/11.0, result.AverageReturn, 1e-12)
	suite.InDelta(1000.0*12.0/11.0, result.EndingCapital.Unwrap(), 1e-9)

	result, err = index.Backtest(optional.None[float64]())
	suite.NoError(err)
	suite.True(result.EndingCapital.IsNone())
}

func (suite *IndexTestSuite) TestMissingExecutionPriceFailsBacktest() {
	series := dipSeries()
	// the sell at 56 executes at 57
	series[57].Value = math.NaN()

	index, err := NewIndex(series, DefaultOptions())
	suite.Require().NoError(err)
	suite.Contains(index.BuyPoints(), 39)
	suite.Contains(index.SellPoints(), 56)

	for _, capital := range []optional.Option[float64]{optional.None[float64](), optional.Some(1000.0)} {
		suite.NotPanics(func() {
			result, err := index.Backtest(capital)
			suite.Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
			suite.False(math.IsNaN(result.AverageReturn))
		})
	}
}

func (suite *IndexTestSuite) TestMissingValueKeepsDerivedSeriesFinite() {
	series := dipSeries()
	series[5].Value = math.NaN()

	index, err := NewIndex(series, DefaultOptions())
	suite.Require().NoError(err)

	derived := index.Derived()
	for i := range derived.MACD {
		suite.False(math.IsNaN(derived.EMAFast[i]), "ema fast at %d", i)
		suite.False(math.IsNaN(derived.EMASlow[i]), "ema slow at %d", i)
		suite.False(math.IsNaN(derived.MACD[i]), "macd at %d", i)
		suite.False(math.IsNaN(derived.Signal[i]), "signal at %d", i)
	}

	// the flat prefix carries through the gap unchanged
	suite.Equal(10.0, derived.EMAFast[29])
	suite.Equal(10.0, derived.EMASlow[29])

	suite.NotEmpty(index.BuyPoints())
	suite.NotEmpty(index.SellPoints())

	clean, err := NewIndex(dipSeries(), DefaultOptions())
	suite.Require().NoError(err)

	cleanDerived := clean.Derived()
	for i := range derived.MACD {
		suite.InDelta(cleanDerived.EMAFast[i], derived.EMAFast[i], 0.05)
		suite.InDelta(cleanDerived.EMASlow[i], derived.EMASlow[i], 0.05)
	}
}

func (suite *IndexTestSuite) TestConstantSeriesHasNoTrades() {
	index, err := NewIndex(seriesOf(repeat(42, 50)...), DefaultOptions())
	suite.Require().NoError(err)

	suite.Empty(index.BuyPoints())
	suite.Empty(index.SellPoints())

	derived := index.Derived()
	for i := range derived.MACD {
		suite.Equal(42.0, derived.EMAFast[i])
		suite.Equal(42.0, derived.EMASlow[i])
		suite.Equal(0.0, derived.MACD[i])
		suite.Equal(0.0, derived.Signal[i])
	}

	_, err = index.Backtest(optional.Some(1000.0))
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndexTestSuite) TestMonotonicSeriesHasNoCrossovers() {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}

	index, err := NewIndex(seriesOf(values...), DefaultOptions())
	suite.Require().NoError(err)
	suite.Empty(index.BuyPoints())
	suite.Empty(index.SellPoints())
}

func (suite *IndexTestSuite) TestSinglePoint() {
	index, err := NewIndex(seriesOf(5), DefaultOptions())
	suite.Require().NoError(err)
	suite.Equal(1, index.Len())
	suite.Equal(1, index.Derived().Len())
	suite.Empty(index.Events())

	_, err = index.Backtest(optional.None[float64]())
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndexTestSuite) TestConstructionErrors() {
	_, err := NewIndex(types.TimeSeries{}, DefaultOptions())
	suite.True(errors.IsInsufficientDataError(err))

	opts := DefaultOptions()
	opts.FastPeriod = 30
	_, err = NewIndex(dipSeries(), opts)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))

	opts = DefaultOptions()
	opts.SignalPeriod = 0
	_, err = NewIndex(dipSeries(), opts)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))

	opts = DefaultOptions()
	opts.Pairing = backtest.PairingMode("random")
	_, err = NewIndex(dipSeries(), opts)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPairingMode))
}

func (suite *IndexTestSuite) TestInputIsCopied() {
	series := dipSeries()

	index, err := NewIndex(series, DefaultOptions())
	suite.Require().NoError(err)

	series[40].Value = 1000

	suite.Equal(11.0, index.Series()[40].Value)
	suite.Equal([]int{39}, index.BuyPoints())
}

func (suite *IndexTestSuite) TestAccessorsReturnCopies() {
	index, err := NewIndex(dipSeries(), DefaultOptions())
	suite.Require().NoError(err)

	buys := index.BuyPoints()
	buys[0] = 1
	suite.Equal([]int{39}, index.BuyPoints())

	sells := index.SellPoints()
	sells[0] = 1
	suite.Equal([]int{56}, index.SellPoints())

	derived := index.Derived()
	derived.MACD[10] = 99
	suite.NotEqual(99.0, index.Derived().MACD[10])

	series := index.Series()
	series[0].Value = -1
	suite.Equal(10.0, index.Series()[0].Value)
}

func (suite *IndexTestSuite) TestPairingOption() {
	opts := DefaultOptions()
	opts.Pairing = backtest.PairingAlternating

	index, err := NewIndex(dipSeries(), opts)
	suite.Require().NoError(err)
	suite.Equal(backtest.PairingAlternating, index.Pairing())

	result, err := index.Backtest(optional.None[float64]())
	suite.NoError(err)
	suite.InDelta(1.0/11.0, result.AverageReturn, 1e-12)
}

func (suite *IndexTestSuite) TestGeneratedSeriesProperties() {
	gen := mocks.NewDataGenerator(7)
	config := mocks.DefaultConfig()
	config.Count = 300

	for i, series := range gen.GenerateMany(20, config) {
		index, err := NewIndex(series, DefaultOptions())
		suite.Require().NoError(err, "series %d", i)

		derived := index.Derived()
		suite.Equal(series.Len(), derived.Len())
		suite.Equal(series[0].Value, derived.EMAFast[0])
		suite.Equal(series[0].Value, derived.EMASlow[0])
		suite.Equal(0.0, derived.MACD[0])
		suite.Equal(0.0, derived.Signal[0])

		buys := index.BuyPoints()
		sells := index.SellPoints()

		seen := map[int]bool{}
		for _, positions := range [][]int{buys, sells} {
			for k, p := range positions {
				suite.GreaterOrEqual(p, 1)
				suite.Less(p, series.Len())

				if k > 0 {
					suite.Greater(p, positions[k-1])
				}

				suite.False(seen[p], "position %d is both a buy and a sell", p)
				seen[p] = true
			}
		}

		for _, p := range buys {
			suite.Greater(derived.MACD[p], derived.Signal[p])
			suite.Less(derived.MACD[p-1], derived.Signal[p-1])
		}

		for _, p := range sells {
			suite.Less(derived.MACD[p], derived.Signal[p])
			suite.Greater(derived.MACD[p-1], derived.Signal[p-1])
		}

		again, err := NewIndex(series, DefaultOptions())
		suite.Require().NoError(err)
		suite.Equal(buys, again.BuyPoints())
		suite.Equal(sells, again.SellPoints())
		suite.Equal(derived, again.Derived())
	}
}

func (suite *IndexTestSuite) TestDerivationIsCausal() {
	gen := mocks.NewDataGenerator(11)
	config := mocks.DefaultConfig()
	config.Count = 200

	series := gen.Generate(config)

	full, err := NewIndex(series, DefaultOptions())
	suite.Require().NoError(err)

	prefix, err := NewIndex(series[:120], DefaultOptions())
	suite.Require().NoError(err)

	fullDerived := full.Derived()
	prefixDerived := prefix.Derived()

	for i := 0; i < 120; i++ {
		suite.Equal(fullDerived.MACD[i], prefixDerived.MACD[i])
		suite.Equal(fullDerived.Signal[i], prefixDerived.Signal[i])
	}

	for _, p := range prefix.BuyPoints() {
		suite.Contains(full.BuyPoints(), p)
	}
}

func (suite *IndexTestSuite) TestIndependentInstancesInParallel() {
	gen := mocks.NewDataGenerator(3)
	all := gen.GenerateMany(8, mocks.DefaultConfig())

	expected := make([][]int, len(all))
	for i, series := range all {
		index, err := NewIndex(series, DefaultOptions())
		suite.Require().NoError(err)
		expected[i] = index.BuyPoints()
	}

	actual := make([][]int, len(all))

	var wg sync.WaitGroup
	for i, series := range all {
		wg.Add(1)

		go func() {
			defer wg.Done()

			index, err := NewIndex(series, DefaultOptions())
			if err == nil {
				actual[i] = index.BuyPoints()
			}
		}()
	}

	wg.Wait()

	suite.Equal(expected, actual)
}

func (suite *IndexTestSuite) TestNewIndexFromColumns() {
	columns := map[string][]any{
		"date":  {"2024-01-01", "2024-01-02", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		"close": {10.0, 11, "12.5"},
	}

	index, err := NewIndexFromColumns(columns, "date", "close", DefaultOptions())
	suite.Require().NoError(err)
	suite.Equal([]float64{10, 11, 12.5}, index.Series().Values())
	suite.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), index.Series()[1].Time)
}

func (suite *IndexTestSuite) TestNewIndexFromColumnsMissingField() {
	columns := map[string][]any{
		"date":  {"2024-01-01"},
		"close": {10.0},
	}

	_, err := NewIndexFromColumns(columns, "date", "value", DefaultOptions())
	suite.Error(err)

	var missing *errors.MissingFieldError
	suite.Require().True(errors.As(err, &missing))
	suite.Equal("value", missing.Field)
	suite.ElementsMatch([]string{"date", "close"}, missing.Available)

	_, err = NewIndexFromColumns(columns, "time", "close", DefaultOptions())
	suite.True(errors.IsMissingFieldError(err))
}

func (suite *IndexTestSuite) TestNewIndexFromColumnsBadRows() {
	_, err := NewIndexFromColumns(map[string][]any{
		"date":  {"2024-01-01", "2024-01-02"},
		"value": {1.0},
	}, "date", "value", DefaultOptions())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = NewIndexFromColumns(map[string][]any{
		"date":  {"yesterday"},
		"value": {1.0},
	}, "date", "value", DefaultOptions())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidType))

	_, err = NewIndexFromColumns(map[string][]any{
		"date":  {"2024-01-01"},
		"value": {true},
	}, "date", "value", DefaultOptions())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidType))
}
