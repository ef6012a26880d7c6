package protocol

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// ChannelName identifies one subscribable stream, for example btcusdt@kline_1m.
type ChannelName string

var klineChannelPattern = regexp.MustCompile(
	`^([a-z0-9]+)@kline_(1m|3m|5m|15m|30m|1h|2h|4h|6h|8h|12h|1d|3d|1w|1M)$`,
)

// NewKlineChannel builds the kline channel for a symbol and interval.
func NewKlineChannel(symbol string, interval types.Interval) (ChannelName, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))

	return ParseChannelName(fmt.Sprintf("%s@%s_%s", symbol, EventKindKline, interval))
}

// ParseChannelName validates a raw channel name.
func ParseChannelName(raw string) (ChannelName, error) {
	if !klineChannelPattern.MatchString(raw) {
		return "", errors.Newf(errors.ErrCodeInvalidChannel, "invalid channel name %q", raw)
	}

	return ChannelName(raw), nil
}

// Validate reports whether the channel name is well formed.
func (c ChannelName) Validate() error {
	_, err := ParseChannelName(string(c))

	return err
}

// ProcessorID returns the processor that owns data arriving on the channel.
func (c ChannelName) ProcessorID() (types.ProcessorID, error) {
	match := klineChannelPattern.FindStringSubmatch(string(c))
	if match == nil {
		return types.ProcessorID{}, errors.Newf(errors.ErrCodeInvalidChannel, "invalid channel name %q", c)
	}

	return types.NewProcessorID(match[1], types.Interval(match[2]))
}

func (c ChannelName) String() string {
	return string(c)
}
