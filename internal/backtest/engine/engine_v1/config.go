package engine

import (
	"encoding/json"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-macd/internal/backtest"
	"github.com/rxtech-lab/argo-macd/internal/indicator"
	"github.com/rxtech-lab/argo-macd/internal/macd"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/internal/version"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
	"gopkg.in/yaml.v3"
)

type MACDEngineV1Config struct {
	Version        string                   `yaml:"version" json:"version" validate:"required" jsonschema:"title=Version,description=Engine version this config was written for"`
	FastPeriod     int                      `yaml:"fast_period" json:"fast_period" validate:"gt=0,ltfield=SlowPeriod" jsonschema:"title=Fast Period,description=Span of the fast EMA,minimum=1,default=12"`
	SlowPeriod     int                      `yaml:"slow_period" json:"slow_period" validate:"gt=0" jsonschema:"title=Slow Period,description=Span of the slow EMA,minimum=1,default=26"`
	SignalPeriod   int                      `yaml:"signal_period" json:"signal_period" validate:"gt=0" jsonschema:"title=Signal Period,description=Span of the signal EMA,minimum=1,default=9"`
	InitialCapital optional.Option[float64] `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Optional starting capital compounded through every trade"`
	TimeField      string                   `yaml:"time_field" json:"time_field" validate:"required" jsonschema:"title=Time Field,description=Column holding the timestamps,default=date"`
	ValueField     string                   `yaml:"value_field" json:"value_field" validate:"required" jsonschema:"title=Value Field,description=Column holding the prices,default=value"`
	Pairing        backtest.PairingMode     `yaml:"pairing" json:"pairing" validate:"oneof=positional alternating" jsonschema:"title=Pairing,description=How buy and sell executions are paired into trades"`
	Chart          bool                     `yaml:"chart" json:"chart" jsonschema:"title=Chart,description=Render a PNG chart per data file"`
	Parallelism    int                      `yaml:"parallelism" json:"parallelism" validate:"gte=0" jsonschema:"title=Parallelism,description=Number of data files processed at the same time; 0 uses one per CPU,minimum=0,default=0"`
}

// UnmarshalYAML implements custom unmarshaling for MACDEngineV1Config.
// Fields missing from the document keep their EmptyConfig defaults.
func (c *MACDEngineV1Config) UnmarshalYAML(value *yaml.Node) error {
	type Config struct {
		Version        *string               `yaml:"version"`
		FastPeriod     *int                  `yaml:"fast_period"`
		SlowPeriod     *int                  `yaml:"slow_period"`
		SignalPeriod   *int                  `yaml:"signal_period"`
		InitialCapital *float64              `yaml:"initial_capital"`
		TimeField      *string               `yaml:"time_field"`
		ValueField     *string               `yaml:"value_field"`
		Pairing        *backtest.PairingMode `yaml:"pairing"`
		Chart          *bool                 `yaml:"chart"`
		Parallelism    *int                  `yaml:"parallelism"`
	}

	var config Config
	if err := value.Decode(&config); err != nil {
		return err
	}

	*c = EmptyConfig()

	if config.Version != nil {
		c.Version = *config.Version
	}

	if config.FastPeriod != nil {
		c.FastPeriod = *config.FastPeriod
	}

	if config.SlowPeriod != nil {
		c.SlowPeriod = *config.SlowPeriod
	}

	if config.SignalPeriod != nil {
		c.SignalPeriod = *config.SignalPeriod
	}

	if config.InitialCapital != nil {
		c.InitialCapital = optional.Some(*config.InitialCapital)
	}

	if config.TimeField != nil {
		c.TimeField = *config.TimeField
	}

	if config.ValueField != nil {
		c.ValueField = *config.ValueField
	}

	if config.Pairing != nil {
		c.Pairing = *config.Pairing
	}

	if config.Chart != nil {
		c.Chart = *config.Chart
	}

	if config.Parallelism != nil {
		c.Parallelism = *config.Parallelism
	}

	return nil
}

// MarshalYAML writes the initial capital as a plain number, or omits it when absent.
func (c MACDEngineV1Config) MarshalYAML() (any, error) {
	type Config struct {
		Version        string               `yaml:"version"`
		FastPeriod     int                  `yaml:"fast_period"`
		SlowPeriod     int                  `yaml:"slow_period"`
		SignalPeriod   int                  `yaml:"signal_period"`
		InitialCapital *float64             `yaml:"initial_capital,omitempty"`
		TimeField      string               `yaml:"time_field"`
		ValueField     string               `yaml:"value_field"`
		Pairing        backtest.PairingMode `yaml:"pairing"`
		Chart          bool                 `yaml:"chart"`
		Parallelism    int                  `yaml:"parallelism"`
	}

	return Config{
		Version:        c.Version,
		FastPeriod:     c.FastPeriod,
		SlowPeriod:     c.SlowPeriod,
		SignalPeriod:   c.SignalPeriod,
		InitialCapital: types.OptionToPointer(c.InitialCapital),
		TimeField:      c.TimeField,
		ValueField:     c.ValueField,
		Pairing:        c.Pairing,
		Chart:          c.Chart,
		Parallelism:    c.Parallelism,
	}, nil
}

// ParseConfig decodes and validates a YAML config. An empty document yields EmptyConfig.
func ParseConfig(content string) (MACDEngineV1Config, error) {
	config := EmptyConfig()

	if strings.TrimSpace(content) != "" {
		if err := yaml.Unmarshal([]byte(content), &config); err != nil {
			return MACDEngineV1Config{}, errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse config", err)
		}
	}

	if err := config.Validate(); err != nil {
		return MACDEngineV1Config{}, err
	}

	return config, nil
}

// Validate checks field constraints and version compatibility with the running engine.
func (c MACDEngineV1Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if c.InitialCapital.IsSome() && c.InitialCapital.Unwrap() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "initial_capital must be positive, got %v", c.InitialCapital.Unwrap())
	}

	return version.CheckVersionCompatibility(version.GetVersion(), c.Version)
}

// IndexOptions converts the config into options for macd.NewIndex.
func (c MACDEngineV1Config) IndexOptions() macd.Options {
	return macd.Options{
		FastPeriod:   c.FastPeriod,
		SlowPeriod:   c.SlowPeriod,
		SignalPeriod: c.SignalPeriod,
		Pairing:      c.Pairing,
	}
}

// WorkerLimit returns how many data files run at the same time. Zero parallelism
// resolves to the number of CPUs of the running machine.
func (c MACDEngineV1Config) WorkerLimit() int {
	if c.Parallelism == 0 {
		return runtime.NumCPU()
	}

	return c.Parallelism
}

// GenerateSchema generates a JSON schema for the MACDEngineV1Config
func (c *MACDEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(optional.Option[float64]{}) {
				return &jsonschema.Schema{
					Type: "number",
				}
			}

			if t == reflect.TypeOf(backtest.PairingMode("")) {
				return &jsonschema.Schema{
					Type: "string",
					Enum: backtest.AllPairingModes,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "macd-engine-v1-config"
	schema.Description = "Configuration schema for MACDEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the MACDEngineV1Config
func (c *MACDEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// EmptyConfig returns a MACDEngineV1Config with default values
func EmptyConfig() MACDEngineV1Config {
	return MACDEngineV1Config{
		Version:        version.GetVersion(),
		FastPeriod:     indicator.DefaultFastPeriod,
		SlowPeriod:     indicator.DefaultSlowPeriod,
		SignalPeriod:   indicator.DefaultSignalPeriod,
		InitialCapital: optional.None[float64](),
		TimeField:      "date",
		ValueField:     "value",
		Pairing:        backtest.PairingPositional,
		Chart:          false,
		Parallelism:    0,
	}
}
