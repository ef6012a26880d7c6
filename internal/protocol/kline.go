package protocol

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// KlineEvent is a kline update frame. Price and volume fields accept either
// JSON strings or numbers.
type KlineEvent struct {
	EventType string       `json:"e"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s"`
	Kline     KlinePayload `json:"k"`
}

// KlinePayload is the nested candle state of a kline frame.
type KlinePayload struct {
	StartTime           int64           `json:"t"`
	CloseTime           int64           `json:"T"`
	Symbol              string          `json:"s"`
	Interval            string          `json:"i"`
	FirstTradeID        int64           `json:"f"`
	LastTradeID         int64           `json:"L"`
	Open                decimal.Decimal `json:"o"`
	Close               decimal.Decimal `json:"c"`
	High                decimal.Decimal `json:"h"`
	Low                 decimal.Decimal `json:"l"`
	Volume              decimal.Decimal `json:"v"`
	Trades              int64           `json:"n"`
	Closed              bool            `json:"x"`
	QuoteVolume         decimal.Decimal `json:"q"`
	TakerBuyBaseVolume  decimal.Decimal `json:"V"`
	TakerBuyQuoteVolume decimal.Decimal `json:"Q"`
	Ignore              json.RawMessage `json:"B"`
}

func (k *KlineEvent) Kind() EventKind {
	return EventKindKline
}

func (k *KlineEvent) Key() string {
	return strings.ToUpper(k.Symbol)
}

// ProcessorID returns the processor the event belongs to.
func (k *KlineEvent) ProcessorID() (types.ProcessorID, error) {
	symbol := k.Kline.Symbol
	if symbol == "" {
		symbol = k.Symbol
	}

	return types.NewProcessorID(symbol, types.Interval(k.Kline.Interval))
}

// Candle maps the event into the canonical candle record.
func (k *KlineEvent) Candle() (types.Candle, error) {
	id, err := k.ProcessorID()
	if err != nil {
		return types.Candle{}, errors.Wrap(errors.ErrCodeEventDecode, "invalid kline identity", err)
	}

	return types.Candle{
		Symbol:      id.Symbol,
		Interval:    id.Interval,
		OpenTime:    time.UnixMilli(k.Kline.StartTime).UTC(),
		CloseTime:   time.UnixMilli(k.Kline.CloseTime).UTC(),
		Open:        k.Kline.Open,
		High:        k.Kline.High,
		Low:         k.Kline.Low,
		Close:       k.Kline.Close,
		Volume:      k.Kline.Volume,
		QuoteVolume: k.Kline.QuoteVolume,
		Trades:      k.Kline.Trades,
		Closed:      k.Kline.Closed,
	}, nil
}

func decodeKline(data []byte) (Event, error) {
	var event KlineEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEventDecode, "failed to decode kline event", err)
	}

	if event.Symbol == "" && event.Kline.Symbol == "" {
		return nil, errors.New(errors.ErrCodeEventDecode, "kline event has no symbol")
	}

	if !types.Interval(event.Kline.Interval).IsValid() {
		return nil, errors.Newf(errors.ErrCodeEventDecode, "kline event has unsupported interval %q", event.Kline.Interval)
	}

	return &event, nil
}

// NewKlineEvent builds the wire form of a candle. Used by the mock exchange
// and by tests that feed synthetic frames.
func NewKlineEvent(candle types.Candle, eventTime time.Time) KlineEvent {
	return KlineEvent{
		EventType: string(EventKindKline),
		EventTime: eventTime.UnixMilli(),
		Symbol:    candle.Symbol,
		Kline: KlinePayload{
			StartTime:   candle.OpenTime.UnixMilli(),
			CloseTime:   candle.CloseTime.UnixMilli(),
			Symbol:      candle.Symbol,
			Interval:    string(candle.Interval),
			Open:        candle.Open,
			Close:       candle.Close,
			High:        candle.High,
			Low:         candle.Low,
			Volume:      candle.Volume,
			Trades:      candle.Trades,
			Closed:      candle.Closed,
			QuoteVolume: candle.QuoteVolume,
			Ignore:      json.RawMessage(`"0"`),
		},
	}
}
