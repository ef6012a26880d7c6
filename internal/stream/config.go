package stream

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/kline-sentinel/internal/worker"
)

// Config holds the protocol limits of a manager.
type Config struct {
	// BatchSize is the number of channels per SUBSCRIBE/UNSUBSCRIBE request
	BatchSize int `yaml:"batch_size" json:"batch_size" jsonschema:"title=Batch Size,default=5" validate:"gte=1"`
	// MaxStreams is the maximum number of concurrently active channels
	MaxStreams int `yaml:"max_streams" json:"max_streams" jsonschema:"title=Max Streams,default=1024" validate:"gte=1"`
	// MaxMessagesPerSecond caps outbound control messages in any rolling second
	MaxMessagesPerSecond int `yaml:"max_messages_per_second" json:"max_messages_per_second" jsonschema:"title=Max Messages Per Second,default=5" validate:"gte=1"`
	// RequestTimeout bounds the wait for each correlated response
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" jsonschema:"title=Request Timeout" validate:"gt=0"`
	// MaxQueueSize bounds the outbound queue, 0 means unbounded
	MaxQueueSize int `yaml:"max_queue_size" json:"max_queue_size" jsonschema:"title=Max Queue Size,default=0" validate:"gte=0"`
	// Dispatch configures the pool that runs event handlers
	Dispatch worker.Config `yaml:"dispatch" json:"dispatch" jsonschema:"title=Dispatch"`
}

// DefaultConfig returns the Binance spot limits.
func DefaultConfig() Config {
	return Config{
		BatchSize:            5,
		MaxStreams:           1024,
		MaxMessagesPerSecond: 5,
		RequestTimeout:       10 * time.Second,
		MaxQueueSize:         0,
		Dispatch:             worker.Config{Workers: 8, QueueSize: 1024},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid stream config: %w", err)
	}

	return nil
}
