package types

import (
	"time"

	"github.com/google/uuid"
)

// Alert is produced by a rule when it fires.
type Alert struct {
	// ID is unique per alert
	ID string `json:"id"`
	// Processor is the processor whose window triggered the alert
	Processor ProcessorID `json:"processor"`
	// Rule is the rule that fired
	Rule RuleKind `json:"rule"`
	// Direction is the direction of the move
	Direction Direction `json:"direction"`
	// Message is the human readable description
	Message string `json:"message"`
	// Candle is the latest candle of the evaluated window
	Candle Candle `json:"candle"`
	// CreatedAt is when the rule fired
	CreatedAt time.Time `json:"created_at"`
}

// NewAlert creates an alert with a fresh id.
func NewAlert(id ProcessorID, rule RuleKind, direction Direction, message string, candle Candle) Alert {
	return Alert{
		ID:        uuid.New().String(),
		Processor: id,
		Rule:      rule,
		Direction: direction,
		Message:   message,
		Candle:    candle,
		CreatedAt: time.Now(),
	}
}
