// Package history fetches recent closed candles so new processors start
// with a full window.
package history

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// MaxLimit is the largest page the klines endpoint serves.
const MaxLimit = 1000

// Fetcher returns the most recent candles of an identity, oldest first.
type Fetcher interface {
	Recent(ctx context.Context, id types.ProcessorID, limit int) ([]types.Candle, error)
}

// KlinesService abstracts the go-binance klines service for testing.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// Config holds the REST endpoint and credentials. Klines are public, the
// keys are only passed through to the client.
type Config struct {
	BaseURL   string `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL,description=REST endpoint, empty for the exchange default"`
	APIKey    string `yaml:"-" json:"-"`
	SecretKey string `yaml:"-" json:"-"`
}

// BinanceFetcher loads candles from the Binance REST API.
type BinanceFetcher struct {
	newService func() KlinesService
	now        func() time.Time
	log        *logger.Logger
}

// NewBinanceFetcher creates a fetcher backed by a go-binance client.
func NewBinanceFetcher(cfg Config, log *logger.Logger) *BinanceFetcher {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	return NewBinanceFetcherWithService(func() KlinesService {
		return &realKlinesService{svc: client.NewKlinesService()}
	}, log)
}

// NewBinanceFetcherWithService creates a fetcher using the given service
// factory (for testing).
func NewBinanceFetcherWithService(newService func() KlinesService, log *logger.Logger) *BinanceFetcher {
	return &BinanceFetcher{
		newService: newService,
		now:        time.Now,
		log:        log.Named("history"),
	}
}

func (f *BinanceFetcher) Recent(ctx context.Context, id types.ProcessorID, limit int) ([]types.Candle, error) {
	if limit <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "limit must be positive, got %d", limit)
	}

	limit = min(limit, MaxLimit)

	klines, err := f.newService().
		Symbol(id.Symbol).
		Interval(string(id.Interval)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeHistoryFetch, err, "failed to fetch klines for %s", id)
	}

	candles, err := convertKlines(id, klines, f.now())
	if err != nil {
		return nil, err
	}

	f.log.Debug("Fetched history",
		zap.String("processor", id.String()),
		zap.Int("requested", limit),
		zap.Int("received", len(candles)),
	)

	return candles, nil
}

// convertKlines maps REST klines to candles. A kline whose close time is
// still ahead of now is the open bucket.
func convertKlines(id types.ProcessorID, klines []*binance.Kline, now time.Time) ([]types.Candle, error) {
	candles := make([]types.Candle, 0, len(klines))

	for _, k := range klines {
		if k == nil {
			continue
		}

		values, err := parseDecimals(k.Open, k.High, k.Low, k.Close, k.Volume, k.QuoteAssetVolume)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeHistoryFetch, err, "malformed kline for %s at %d", id, k.OpenTime)
		}

		closeTime := time.UnixMilli(k.CloseTime).UTC()

		candles = append(candles, types.Candle{
			Symbol:      id.Symbol,
			Interval:    id.Interval,
			OpenTime:    time.UnixMilli(k.OpenTime).UTC(),
			CloseTime:   closeTime,
			Open:        values[0],
			High:        values[1],
			Low:         values[2],
			Close:       values[3],
			Volume:      values[4],
			QuoteVolume: values[5],
			Trades:      k.TradeNum,
			Closed:      !closeTime.After(now),
		})
	}

	return candles, nil
}

func parseDecimals(raw ...string) ([]decimal.Decimal, error) {
	values := make([]decimal.Decimal, len(raw))

	for i, s := range raw {
		if s == "" {
			values[i] = decimal.Zero

			continue
		}

		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}

		values[i] = v
	}

	return values, nil
}

// realKlinesService adapts *binance.KlinesService to KlinesService.
type realKlinesService struct {
	svc *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.svc = s.svc.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.svc = s.svc.Interval(interval)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.svc = s.svc.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.svc.Do(ctx)
}
