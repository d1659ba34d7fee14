package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-macd/internal/types"
)

// DataGenerator generates realistic price series for testing and benchmarking.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how a price series is generated.
type GeneratorConfig struct {
	// StartTime is the beginning of the series
	StartTime time.Time
	// Interval is the duration between each point
	Interval time.Duration
	// Count is the number of points to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% typical per-point volatility)
	Volatility float64
	// Trend is the drift factor (-0.01 to 0.01 for bearish to bullish)
	Trend float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		StartTime:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:     24 * time.Hour,
		Count:        500,
		InitialPrice: 100.0,
		Volatility:   0.02, // 2% per point
		Trend:        0.0,  // neutral
	}
}

// Generate creates a price series following geometric Brownian motion.
// Prices are always positive.
func (g *DataGenerator) Generate(config GeneratorConfig) types.TimeSeries {
	series := make(types.TimeSeries, config.Count)
	price := config.InitialPrice
	current := config.StartTime

	for i := 0; i < config.Count; i++ {
		series[i] = types.Point{
			Time:  current,
			Value: roundToDecimals(price, 4),
		}

		// Box-Muller transform for a standard normal draw
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		next := price * (1 + config.Volatility*z + config.Trend/float64(config.Count))
		if next <= 0 {
			next = price * 0.99
		}

		price = next
		current = current.Add(config.Interval)
	}

	return series
}

// GenerateMany generates count independent series, each with a slightly different
// starting price and volatility.
func (g *DataGenerator) GenerateMany(count int, baseConfig GeneratorConfig) []types.TimeSeries {
	all := make([]types.TimeSeries, 0, count)

	for i := 0; i < count; i++ {
		config := baseConfig
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		all = append(all, g.Generate(config))
	}

	return all
}

// Generate10K is a convenience function to generate 10,000 points
// with default settings for benchmarking.
func Generate10K() types.TimeSeries {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 10000

	return gen.Generate(config)
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
