package types

// RuleKind names a rule evaluator.
type RuleKind string

const (
	// RuleKindHighVolumeRise fires when the latest volume spikes above its moving average
	RuleKindHighVolumeRise RuleKind = "HIGH_VOLUME_RISE"
	// RuleKindPriceChange fires when the close moves more than a percentage across the window
	RuleKindPriceChange RuleKind = "PRICE_CHANGE"
)

// CheckType filters rule results by the direction of the move.
type CheckType string

const (
	CheckTypeUp   CheckType = "UP"
	CheckTypeDown CheckType = "DOWN"
	CheckTypeBoth CheckType = "BOTH"
)

// Direction is the direction of the move that triggered an alert.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Allows reports whether a move in the given direction passes the filter.
func (c CheckType) Allows(d Direction) bool {
	switch c {
	case CheckTypeBoth:
		return true
	case CheckTypeUp:
		return d == DirectionUp
	case CheckTypeDown:
		return d == DirectionDown
	default:
		return false
	}
}
