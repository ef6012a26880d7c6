package types

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// ProcessorConfig configures the rolling window and rule cadence of a processor.
type ProcessorConfig struct {
	// Windows are the window lengths rules look at. The processor retains max(Windows) candles.
	Windows []int `yaml:"windows" json:"windows" jsonschema:"title=Windows,description=Window lengths of interest,default=10" validate:"required,min=1,dive,gt=0"`
	// CheckEvery runs the enabled rules on every N-th accepted update
	CheckEvery int `yaml:"check_every" json:"check_every" jsonschema:"title=Check Every,minimum=1,default=1" validate:"gte=1"`
	// CheckType filters alerts by direction
	CheckType CheckType `yaml:"check_type" json:"check_type" jsonschema:"title=Check Type,enum=UP,enum=DOWN,enum=BOTH,default=UP" validate:"oneof=UP DOWN BOTH"`
	// OnlyClosed skips rule runs for updates of a still open candle
	OnlyClosed bool `yaml:"only_closed" json:"only_closed" jsonschema:"title=Only Closed"`
	// VolumeRiseFactor is the volume multiple over its average that counts as a rise
	VolumeRiseFactor float64 `yaml:"volume_rise_factor" json:"volume_rise_factor" jsonschema:"title=Volume Rise Factor,default=2" validate:"gt=1"`
	// PriceChangePercent is the absolute close change across a window that counts as a move
	PriceChangePercent float64 `yaml:"price_change_percent" json:"price_change_percent" jsonschema:"title=Price Change Percent,default=3" validate:"gt=0"`
}

// DefaultProcessorConfig returns the configuration used when none is given.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Windows:            []int{10, 20, 100},
		CheckEvery:         1,
		CheckType:          CheckTypeUp,
		OnlyClosed:         false,
		VolumeRiseFactor:   2,
		PriceChangePercent: 3,
	}
}

// Validate checks the configuration.
func (c ProcessorConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid processor config: %w", err)
	}

	return nil
}

// MaxWindow is the number of candles a processor retains.
func (c ProcessorConfig) MaxWindow() int {
	if len(c.Windows) == 0 {
		return 0
	}

	return slices.Max(c.Windows)
}

// SortedWindows returns a sorted copy of Windows.
func (c ProcessorConfig) SortedWindows() []int {
	windows := slices.Clone(c.Windows)
	slices.Sort(windows)

	return windows
}

// Clone returns a deep copy.
func (c ProcessorConfig) Clone() ProcessorConfig {
	clone := c
	clone.Windows = slices.Clone(c.Windows)

	return clone
}
