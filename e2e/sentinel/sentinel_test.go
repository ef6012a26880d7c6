package sentinel_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/kline-sentinel/e2e/mockexchange"
	"github.com/rxtech-lab/kline-sentinel/internal/app"
	"github.com/rxtech-lab/kline-sentinel/internal/config"
	"github.com/rxtech-lab/kline-sentinel/internal/history"
	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/notify"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
)

type recordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingSink) Name() string {
	return "recording"
}

func (r *recordingSink) Deliver(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.texts = append(r.texts, text)

	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.texts)
}

type SentinelE2ETestSuite struct {
	suite.Suite
	exchange *mockexchange.MockExchange
	sink     *recordingSink
	cfg      config.Config
}

func TestSentinelE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	suite.Run(t, new(SentinelE2ETestSuite))
}

func (suite *SentinelE2ETestSuite) SetupTest() {
	exchangeCfg := mockexchange.DefaultConfig()
	exchangeCfg.History = 30
	exchangeCfg.SpikeEvery = 5

	suite.exchange = mockexchange.NewMockExchange(exchangeCfg)
	suite.Require().NoError(suite.exchange.Start(""))

	suite.sink = &recordingSink{}

	cfg := config.Default()
	cfg.Symbols = []string{"btcusdt", "ethusdt"}
	cfg.API.Listen = ""
	cfg.Stream.Websocket.URL = suite.exchange.WebSocketURL()
	cfg.Stream.Manager.MaxMessagesPerSecond = 50
	cfg.History.BaseURL = suite.exchange.BaseURL()
	cfg.Ingest.Preload = true
	cfg.Ingest.Processor.Windows = []int{5, 10}
	cfg.Ingest.Processor.CheckType = types.CheckTypeBoth
	cfg.Ingest.Processor.OnlyClosed = true
	cfg.Reconnect.InitialInterval = 10 * time.Millisecond
	cfg.Reconnect.MaxInterval = 50 * time.Millisecond
	suite.Require().NoError(cfg.Validate())
	suite.cfg = cfg
}

func (suite *SentinelE2ETestSuite) TearDownTest() {
	suite.NoError(suite.exchange.Stop())
}

func (suite *SentinelE2ETestSuite) bothSubscribed() bool {
	subs := suite.exchange.Subscriptions()

	return len(subs) == 2 && subs[0] == "btcusdt@kline_1m" && subs[1] == "ethusdt@kline_1m"
}

func (suite *SentinelE2ETestSuite) TestStreamPreloadAlertAndReconnect() {
	sentinel, err := app.New(suite.cfg, logger.NewNop(), app.Options{
		Dialer:  nil,
		Fetcher: nil,
		Sinks:   []notify.Sink{suite.sink},
	})
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- sentinel.Run(ctx)
	}()

	suite.Eventually(suite.bothSubscribed, 5*time.Second, 20*time.Millisecond)
	suite.Eventually(func() bool { return sentinel.Registry().Len() == 2 }, 5*time.Second, 20*time.Millisecond)

	// preloaded history fills both windows
	suite.Eventually(func() bool {
		for _, status := range sentinel.Registry().Statuses() {
			if status.WindowLength != 10 {
				return false
			}
		}

		return true
	}, 5*time.Second, 20*time.Millisecond)

	suite.Eventually(func() bool { return suite.sink.count() > 0 }, 5*time.Second, 20*time.Millisecond)

	suite.exchange.DropConnections()

	suite.Eventually(func() bool {
		return suite.exchange.Connections() == 1 && suite.bothSubscribed()
	}, 5*time.Second, 20*time.Millisecond)
	suite.Equal(2, sentinel.Registry().Len())

	rec := httptest.NewRecorder()
	sentinel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/rules/PRICE_CHANGE", nil))
	suite.Equal(http.StatusOK, rec.Code)
	suite.JSONEq(`{"results":{"BTCUSDT@1m":true,"ETHUSDT@1m":true}}`, rec.Body.String())

	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(5 * time.Second):
		suite.Fail("sentinel did not stop")
	}
}

func (suite *SentinelE2ETestSuite) TestHistoryFromExchange() {
	fetcher := history.NewBinanceFetcher(history.Config{BaseURL: suite.exchange.BaseURL(), APIKey: "", SecretKey: ""}, logger.NewNop())

	id := types.ProcessorID{Symbol: "BTCUSDT", Interval: types.Interval1m}

	candles, err := fetcher.Recent(context.Background(), id, 10)
	suite.Require().NoError(err)
	suite.Len(candles, 10)

	for i, candle := range candles {
		suite.Equal("BTCUSDT", candle.Symbol)
		suite.True(candle.Closed)

		if i > 0 {
			suite.True(candle.OpenTime.After(candles[i-1].OpenTime))
		}
	}
}
