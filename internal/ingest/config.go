package ingest

import (
	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Config decides which channels a symbol maps to and how its processors start.
type Config struct {
	// Intervals are subscribed for every symbol
	Intervals []types.Interval `yaml:"intervals" json:"intervals" validate:"min=1,dive,oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d 3d 1w 1M" jsonschema:"title=Intervals"`
	// Rules are enabled on every new processor
	Rules []types.RuleKind `yaml:"rules" json:"rules" validate:"dive,oneof=HIGH_VOLUME_RISE PRICE_CHANGE" jsonschema:"title=Rules"`
	// Processor is the configuration of new processors
	Processor types.ProcessorConfig `yaml:"processor" json:"processor"`
	// Preload fills new processors with recent history before the first update
	Preload bool `yaml:"preload" json:"preload" jsonschema:"title=Preload history,default=true"`
}

func DefaultConfig() Config {
	return Config{
		Intervals: []types.Interval{types.Interval1m},
		Rules:     []types.RuleKind{types.RuleKindHighVolumeRise},
		Processor: types.DefaultProcessorConfig(),
		Preload:   true,
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid ingest config", err)
	}

	return c.Processor.Validate()
}
