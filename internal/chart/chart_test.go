package chart

import (
	"bytes"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-macd/internal/macd"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/mocks"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

type ChartTestSuite struct {
	suite.Suite
}

func TestChartSuite(t *testing.T) {
	suite.Run(t, new(ChartTestSuite))
}

func (suite *ChartTestSuite) newIndex(series types.TimeSeries) *macd.Index {
	index, err := macd.NewIndex(series, macd.DefaultOptions())
	suite.Require().NoError(err)

	return index
}

func (suite *ChartTestSuite) TestRenderMACDProducesPNG() {
	config := mocks.DefaultConfig()
	config.Count = 200

	index := suite.newIndex(mocks.NewDataGenerator(42).Generate(config))
	suite.Require().NotEmpty(index.Events())

	var buf bytes.Buffer
	suite.Require().NoError(RenderMACD(&buf, "TEST", index))

	img, err := png.Decode(&buf)
	suite.Require().NoError(err)
	suite.Equal(width, img.Bounds().Dx())
	suite.Equal(height, img.Bounds().Dy())
}

func (suite *ChartTestSuite) TestNewMACDChartSeries() {
	config := mocks.DefaultConfig()
	config.Count = 200

	index := suite.newIndex(mocks.NewDataGenerator(42).Generate(config))

	graph, err := NewMACDChart("TEST", index)
	suite.Require().NoError(err)

	expected := 3
	if len(index.BuyPoints()) > 0 {
		expected++
	}

	if len(index.SellPoints()) > 0 {
		expected++
	}

	suite.Len(graph.Series, expected)
	suite.Equal("TEST", graph.Title)
}

func (suite *ChartTestSuite) TestRenderConstantSeries() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	series := make(types.TimeSeries, 30)
	for i := range series {
		series[i] = types.Point{Time: start.AddDate(0, 0, i), Value: 50}
	}

	index := suite.newIndex(series)

	graph, err := NewMACDChart("FLAT", index)
	suite.Require().NoError(err)
	suite.Len(graph.Series, 3)

	var buf bytes.Buffer
	suite.NoError(RenderMACD(&buf, "FLAT", index))
	suite.NotZero(buf.Len())
}

func (suite *ChartTestSuite) TestRenderSinglePointFails() {
	index := suite.newIndex(types.TimeSeries{{Time: time.Now(), Value: 1}})

	var buf bytes.Buffer
	err := RenderMACD(&buf, "ONE", index)
	suite.Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *ChartTestSuite) TestRenderMACDFile() {
	index := suite.newIndex(mocks.Generate10K()[:500])
	path := filepath.Join(suite.T().TempDir(), "AAPL", "chart.png")

	suite.Require().NoError(RenderMACDFile(path, "AAPL", index))

	info, err := os.Stat(path)
	suite.NoError(err)
	suite.Positive(info.Size())
}

func (suite *ChartTestSuite) TestEventMarkersSkipMissingPrices() {
	series := types.TimeSeries{
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 10},
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Value: math.NaN()},
		{Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Value: 12},
	}

	markers := eventMarkers("buy", series, []int{1, 2}, drawing.ColorWhite)
	suite.Require().NotNil(markers)
	suite.Equal([]float64{12}, markers.YValues)
	suite.Equal([]time.Time{series[2].Time}, markers.XValues)

	suite.Nil(eventMarkers("sell", series, []int{1}, drawing.ColorWhite))
}

func (suite *ChartTestSuite) TestRenderWithMissingValues() {
	series := mocks.NewDataGenerator(7).Generate(mocks.DefaultConfig())
	series[10].Value = math.NaN()
	series[40].Value = math.NaN()

	var buf bytes.Buffer
	suite.Require().NoError(RenderMACD(&buf, "gaps", suite.newIndex(series)))

	_, err := png.Decode(&buf)
	suite.NoError(err)
}

func (suite *ChartTestSuite) TestFillGaps() {
	nan := math.NaN()

	suite.Equal([]float64{2, 2, 3, 3, 3}, fillGaps([]float64{nan, 2, 3, nan, math.Inf(1)}))
	suite.Equal([]float64{0, 0}, fillGaps([]float64{nan, nan}))
	suite.Empty(fillGaps(nil))

	values := []float64{1, nan}
	_ = fillGaps(values)
	suite.True(math.IsNaN(values[1]))
}

func (suite *ChartTestSuite) TestPaddedRange() {
	r := paddedRange([]float64{0, 10})
	suite.InDelta(-0.5, r.Min, 1e-12)
	suite.InDelta(10.5, r.Max, 1e-12)

	r = paddedRange([]float64{3, 3})
	suite.Equal(2.0, r.Min)
	suite.Equal(4.0, r.Max)

	r = paddedRange()
	suite.Equal(-1.0, r.Min)
	suite.Equal(1.0, r.Max)
}
