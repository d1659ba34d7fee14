package chart

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rxtech-lab/argo-macd/internal/macd"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	width  = 1600
	height = 900
)

// NewMACDChart plots price on the secondary axis and the MACD and signal lines on the
// primary axis. Buy and sell events are marked on the price line.
func NewMACDChart(title string, index *macd.Index) (*chart.Chart, error) {
	if index.Len() < 2 {
		return nil, errors.NewInsufficientDataError(2, index.Len(), title, "chart needs at least two points")
	}

	series := index.Series()
	derived := index.Derived()
	times := series.Times()
	prices := fillGaps(series.Values())
	macdLine := fillGaps(derived.MACD)
	signalLine := fillGaps(derived.Signal)

	graph := &chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:  "macd",
			Range: paddedRange(macdLine, signalLine),
		},
		YAxisSecondary: chart.YAxis{
			Name:  "price",
			Range: paddedRange(prices),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "price",
				XValues: times,
				YValues: prices,
				YAxis:   chart.YAxisSecondary,
				Style: chart.Style{
					StrokeColor: chart.ColorLightGray,
					StrokeWidth: 1,
				},
			},
			chart.TimeSeries{
				Name:    "macd",
				XValues: times,
				YValues: macdLine,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 1.5,
				},
			},
			chart.TimeSeries{
				Name:    "signal",
				XValues: times,
				YValues: signalLine,
				Style: chart.Style{
					StrokeColor: chart.ColorOrange,
					StrokeWidth: 1.5,
				},
			},
		},
	}

	if markers := eventMarkers("buy", series, index.BuyPoints(), chart.ColorGreen); markers != nil {
		graph.Series = append(graph.Series, *markers)
	}

	if markers := eventMarkers("sell", series, index.SellPoints(), chart.ColorRed); markers != nil {
		graph.Series = append(graph.Series, *markers)
	}

	graph.Elements = []chart.Renderable{chart.Legend(graph)}

	return graph, nil
}

// RenderMACD renders the MACD chart of index as PNG into w.
func RenderMACD(w io.Writer, title string, index *macd.Index) error {
	graph, err := NewMACDChart(title, index)
	if err != nil {
		return err
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return errors.Wrap(errors.ErrCodeChartRenderFailed, "failed to render chart", err)
	}

	return nil
}

// RenderMACDFile renders the MACD chart of index as a PNG file at path.
func RenderMACDFile(path string, title string, index *macd.Index) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeChartRenderFailed, "failed to create chart directory", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeChartRenderFailed, err, "cannot create %s", path)
	}
	defer f.Close()

	return RenderMACD(f, title, index)
}

func eventMarkers(name string, series types.TimeSeries, positions []int, color drawing.Color) *chart.TimeSeries {
	if len(positions) == 0 {
		return nil
	}

	xs := make([]time.Time, 0, len(positions))
	ys := make([]float64, 0, len(positions))

	for _, p := range positions {
		if math.IsNaN(series[p].Value) || math.IsInf(series[p].Value, 0) {
			continue
		}

		xs = append(xs, series[p].Time)
		ys = append(ys, series[p].Value)
	}

	if len(xs) == 0 {
		return nil
	}

	return &chart.TimeSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		YAxis:   chart.YAxisSecondary,
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    5,
			DotColor:    color,
		},
	}
}

// fillGaps returns a copy of values where each NaN or infinite value is replaced by the
// previous finite one. Leading gaps take the first finite value, and an input with no
// finite value becomes zeros.
func fillGaps(values []float64) []float64 {
	filled := make([]float64, len(values))
	first := -1

	for i, v := range values {
		switch {
		case !math.IsNaN(v) && !math.IsInf(v, 0):
			filled[i] = v

			if first < 0 {
				first = i
			}
		case first >= 0:
			filled[i] = filled[i-1]
		}
	}

	for i := 0; i < first; i++ {
		filled[i] = filled[first]
	}

	return filled
}

// paddedRange spans every finite value with 5% padding. A flat or empty input gets a unit range.
func paddedRange(values ...[]float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)

	for _, vs := range values {
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}

			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	switch {
	case math.IsInf(lo, 1):
		return &chart.ContinuousRange{Min: -1, Max: 1}
	case lo == hi:
		return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	pad := (hi - lo) * 0.05

	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
