package ingest_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/rxtech-lab/kline-sentinel/internal/ingest"
	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/processor"
	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/internal/rule"
	"github.com/rxtech-lab/kline-sentinel/internal/stream"
	"github.com/rxtech-lab/kline-sentinel/internal/stream/streamtest"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/internal/worker"
	"github.com/rxtech-lab/kline-sentinel/mocks"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

const btcChannel protocol.ChannelName = "btcusdt@kline_1m"

type ListenerTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	pool      *worker.KeyedPool
	catalog   *rule.RegistryV1
	registry  *processor.RegistryV1
	fetcher   *mocks.MockFetcher
	exchange  *streamtest.Exchange
	manager   *stream.ManagerV1
	streamCfg stream.Config
	listener  *ingest.KlineListener
	btc       types.ProcessorID
	start     time.Time
}

func TestListenerSuite(t *testing.T) {
	suite.Run(t, new(ListenerTestSuite))
}

func (suite *ListenerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.pool = worker.NewKeyedPool("rules", worker.DefaultConfig(), logger.NewNop())
	suite.catalog = rule.NewRegistry()
	suite.registry = processor.NewRegistry(suite.catalog, suite.pool, nil, logger.NewNop(), nil)
	suite.fetcher = mocks.NewMockFetcher(suite.ctrl)
	suite.btc = types.ProcessorID{Symbol: "BTCUSDT", Interval: types.Interval1m}
	suite.start = time.UnixMilli(1700000000000).UTC()
	suite.manager = nil
	suite.streamCfg = stream.DefaultConfig()
	suite.streamCfg.RequestTimeout = 2 * time.Second
	suite.streamCfg.MaxMessagesPerSecond = 50
}

func (suite *ListenerTestSuite) TearDownTest() {
	if suite.manager != nil {
		suite.NoError(suite.manager.Stop())
	}

	suite.pool.Close()
	suite.ctrl.Finish()
}

func (suite *ListenerTestSuite) setup(cfg ingest.Config) {
	listener, err := ingest.NewKlineListener(cfg, suite.registry, suite.fetcher, logger.NewNop())
	suite.Require().NoError(err)
	suite.listener = listener
	suite.connect()
}

// connect starts a manager on a fresh exchange and attaches it.
func (suite *ListenerTestSuite) connect() {
	if suite.manager != nil {
		suite.NoError(suite.manager.Stop())
	}

	suite.exchange = streamtest.NewExchange()

	manager, err := stream.NewManager(suite.exchange, suite.listener.Handlers(), suite.streamCfg, logger.NewNop(), nil)
	suite.Require().NoError(err)
	suite.Require().NoError(manager.Start(context.Background()))
	suite.manager = manager
	suite.listener.Attach(manager)
}

func (suite *ListenerTestSuite) config() ingest.Config {
	cfg := ingest.DefaultConfig()
	cfg.Rules = nil
	cfg.Preload = false

	return cfg
}

func (suite *ListenerTestSuite) candle(symbol string, minute int, closePrice int64) types.Candle {
	openTime := suite.start.Add(time.Duration(minute) * time.Minute)

	return types.Candle{
		Symbol:    symbol,
		Interval:  types.Interval1m,
		OpenTime:  openTime,
		CloseTime: openTime.Add(time.Minute - time.Millisecond),
		Open:      decimal.NewFromInt(99),
		High:      decimal.NewFromInt(closePrice + 1),
		Low:       decimal.NewFromInt(98),
		Close:     decimal.NewFromInt(closePrice),
		Volume:    decimal.NewFromInt(10),
		Closed:    true,
	}
}

func (suite *ListenerTestSuite) windowLen(id types.ProcessorID) int {
	p, ok := suite.registry.Get(id)
	if !ok {
		return -1
	}

	return len(p.Window())
}

func (suite *ListenerTestSuite) TestEndToEndRuleRuns() {
	var running, runs int32

	var overlapped atomic.Bool

	counting := mocks.NewMockRule(suite.ctrl)
	counting.EXPECT().Kind().Return(types.RuleKindHighVolumeRise).AnyTimes()
	counting.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, rule.Input) (optional.Option[types.Alert], error) {
			if atomic.AddInt32(&running, 1) > 1 {
				overlapped.Store(true)
			}
			defer atomic.AddInt32(&running, -1)

			time.Sleep(time.Millisecond)
			atomic.AddInt32(&runs, 1)

			return optional.None[types.Alert](), nil
		}).MinTimes(10)
	suite.Require().NoError(suite.catalog.Register(counting))

	cfg := suite.config()
	cfg.Rules = []types.RuleKind{types.RuleKindHighVolumeRise}
	suite.setup(cfg)

	results, err := suite.listener.AddSymbols(context.Background(), []string{"btcusdt"})
	suite.Require().NoError(err)
	suite.Equal(map[protocol.ChannelName]bool{btcChannel: true}, results)
	suite.Equal([]string{"btcusdt@kline_1m"}, suite.exchange.Subscriptions())
	suite.Equal(0, suite.windowLen(suite.btc))

	suite.exchange.PushKline(suite.candle("BTCUSDT", 0, 100))
	suite.Eventually(func() bool { return suite.windowLen(suite.btc) == 1 }, 2*time.Second, 10*time.Millisecond)

	p, _ := suite.registry.Get(suite.btc)
	suite.True(p.Window()[0].Close.Equal(decimal.NewFromInt(100)))

	enabled, err := suite.registry.EnableRule(types.RuleKindHighVolumeRise, optional.Some(suite.btc))
	suite.Require().NoError(err)
	suite.True(enabled[suite.btc])

	for minute := 1; minute <= 9; minute++ {
		suite.exchange.PushKline(suite.candle("BTCUSDT", minute, 100+int64(minute)))
	}

	suite.Eventually(func() bool { return suite.windowLen(suite.btc) == 10 }, 2*time.Second, 10*time.Millisecond)
	suite.Eventually(func() bool { return atomic.LoadInt32(&runs) >= 10 }, 2*time.Second, 10*time.Millisecond)
	suite.False(overlapped.Load())
}

func (suite *ListenerTestSuite) TestLazyCreationForActiveChannel() {
	suite.setup(suite.config())

	suite.exchange.Seed("ethusdt@kline_1m")
	_, err := suite.manager.ListSubscriptions(context.Background())
	suite.Require().NoError(err)

	eth := types.ProcessorID{Symbol: "ETHUSDT", Interval: types.Interval1m}
	suite.exchange.PushKline(suite.candle("ETHUSDT", 0, 2000))
	suite.Eventually(func() bool { return suite.windowLen(eth) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func (suite *ListenerTestSuite) TestDropsInactiveChannel() {
	suite.setup(suite.config())

	sol := types.ProcessorID{Symbol: "SOLUSDT", Interval: types.Interval1m}
	suite.exchange.PushKline(suite.candle("SOLUSDT", 0, 50))
	suite.Never(func() bool { return suite.windowLen(sol) >= 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func (suite *ListenerTestSuite) TestRemoveSymbols() {
	suite.setup(suite.config())

	_, err := suite.listener.AddSymbols(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	suite.Require().NoError(err)
	suite.Equal([]string{"BTCUSDT", "ETHUSDT"}, suite.listener.Symbols())
	suite.Equal(2, suite.registry.Len())

	results, err := suite.listener.RemoveSymbols(context.Background(), []string{"BTCUSDT"})
	suite.Require().NoError(err)
	suite.True(results[btcChannel])
	suite.Equal([]string{"ETHUSDT"}, suite.listener.Symbols())
	suite.Equal([]string{"ethusdt@kline_1m"}, suite.exchange.Subscriptions())

	_, ok := suite.registry.Get(suite.btc)
	suite.False(ok)

	// already gone
	results, err = suite.listener.RemoveSymbols(context.Background(), []string{"BTCUSDT"})
	suite.Require().NoError(err)
	suite.True(results[btcChannel])
}

func (suite *ListenerTestSuite) TestRejectedChannelGetsNoProcessor() {
	suite.setup(suite.config())
	suite.exchange.Reject(string(btcChannel))

	results, err := suite.listener.AddSymbols(context.Background(), []string{"BTCUSDT"})
	suite.Require().NoError(err)
	suite.False(results[btcChannel])
	suite.Zero(suite.registry.Len())
	suite.Empty(suite.listener.Symbols())
}

func (suite *ListenerTestSuite) TestFailedAddKeepsDesiredSet() {
	suite.setup(suite.config())

	_, err := suite.listener.AddSymbols(context.Background(), []string{"BTCUSDT"})
	suite.Require().NoError(err)

	suite.exchange.SetResponder(func(request protocol.Request) []byte {
		return streamtest.ErrorReply(request.ID, 2, "Invalid request")
	})

	_, err = suite.listener.AddSymbols(context.Background(), []string{"ETHUSDT"})
	suite.True(errors.HasCode(err, errors.ErrCodeProtocol), "%v", err)
	suite.Equal([]string{"BTCUSDT"}, suite.listener.Symbols())
	suite.Equal(1, suite.registry.Len())
}

func (suite *ListenerTestSuite) TestCapacityRejectedAddThenReconnect() {
	suite.streamCfg.MaxStreams = 1
	suite.setup(suite.config())

	_, err := suite.listener.AddSymbols(context.Background(), []string{"BTCUSDT"})
	suite.Require().NoError(err)

	_, err = suite.listener.AddSymbols(context.Background(), []string{"ETHUSDT"})
	suite.True(errors.HasCode(err, errors.ErrCodeCapacityExceeded), "%v", err)
	suite.Equal([]string{"BTCUSDT"}, suite.listener.Symbols())
	suite.Equal(1, suite.registry.Len())

	suite.exchange.PushKline(suite.candle("BTCUSDT", 0, 100))
	suite.Eventually(func() bool { return suite.windowLen(suite.btc) == 1 }, 2*time.Second, 10*time.Millisecond)

	suite.connect()
	suite.Require().NoError(suite.listener.Resubscribe(context.Background()))
	suite.Equal([]string{"btcusdt@kline_1m"}, suite.exchange.Subscriptions())
	suite.Equal(1, suite.windowLen(suite.btc))
}

func (suite *ListenerTestSuite) TestResubscribePartialSuccess() {
	suite.setup(suite.config())
	eth := types.ProcessorID{Symbol: "ETHUSDT", Interval: types.Interval1m}

	_, err := suite.listener.AddSymbols(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	suite.Require().NoError(err)
	suite.Equal(2, suite.registry.Len())

	suite.connect()
	suite.exchange.Reject("ethusdt@kline_1m")

	suite.Require().NoError(suite.listener.Resubscribe(context.Background()))
	suite.Equal([]string{"btcusdt@kline_1m"}, suite.exchange.Subscriptions())
	suite.Equal([]string{"BTCUSDT"}, suite.listener.Symbols())

	_, ok := suite.registry.Get(eth)
	suite.False(ok)
	_, ok = suite.registry.Get(suite.btc)
	suite.True(ok)
}

func (suite *ListenerTestSuite) TestResubscribeOverCapacityRestoresTheRest() {
	suite.streamCfg.MaxStreams = 2
	suite.setup(suite.config())
	eth := types.ProcessorID{Symbol: "ETHUSDT", Interval: types.Interval1m}

	_, err := suite.listener.AddSymbols(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	suite.Require().NoError(err)

	suite.streamCfg.MaxStreams = 1
	suite.connect()

	err = suite.listener.Resubscribe(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeCapacityExceeded), "%v", err)
	suite.Equal([]string{"btcusdt@kline_1m"}, suite.exchange.Subscriptions())
	suite.True(suite.manager.IsActive(btcChannel))
	suite.Equal([]string{"BTCUSDT"}, suite.listener.Symbols())

	_, ok := suite.registry.Get(eth)
	suite.False(ok)
	suite.Equal(1, suite.registry.Len())
}

func (suite *ListenerTestSuite) TestPreloadHistory() {
	cfg := suite.config()
	cfg.Preload = true
	suite.setup(cfg)

	history := mocks.Generate150("BTCUSDT")
	suite.fetcher.EXPECT().Recent(gomock.Any(), suite.btc, 100).Return(history, nil).Times(1)

	_, err := suite.listener.AddSymbols(context.Background(), []string{"BTCUSDT"})
	suite.Require().NoError(err)
	suite.Equal(100, suite.windowLen(suite.btc))
}

func (suite *ListenerTestSuite) TestPreloadFailureKeepsProcessor() {
	cfg := suite.config()
	cfg.Preload = true
	suite.setup(cfg)

	suite.fetcher.EXPECT().Recent(gomock.Any(), suite.btc, 100).
		Return(nil, errors.New(errors.ErrCodeHistoryFetch, "down")).Times(1)

	_, err := suite.listener.AddSymbols(context.Background(), []string{"BTCUSDT"})
	suite.Require().NoError(err)
	suite.Equal(0, suite.windowLen(suite.btc))
}

func (suite *ListenerTestSuite) TestResubscribeAfterReconnect() {
	suite.setup(suite.config())

	_, err := suite.listener.AddSymbols(context.Background(), []string{"BTCUSDT"})
	suite.Require().NoError(err)

	suite.exchange.PushKline(suite.candle("BTCUSDT", 0, 100))
	suite.Eventually(func() bool { return suite.windowLen(suite.btc) == 1 }, 2*time.Second, 10*time.Millisecond)

	suite.connect()
	suite.Empty(suite.exchange.Subscriptions())

	suite.Require().NoError(suite.listener.Resubscribe(context.Background()))
	suite.Equal([]string{"btcusdt@kline_1m"}, suite.exchange.Subscriptions())
	suite.True(suite.manager.IsActive(btcChannel))

	// the window survives the reconnect
	suite.Equal(1, suite.windowLen(suite.btc))
}

func (suite *ListenerTestSuite) TestErrors() {
	listener, err := ingest.NewKlineListener(suite.config(), suite.registry, nil, logger.NewNop())
	suite.Require().NoError(err)
	suite.Require().NoError(listener.Resubscribe(context.Background()))

	_, err = listener.AddSymbols(context.Background(), []string{"BTCUSDT"})
	suite.True(errors.HasCode(err, errors.ErrCodeNotStarted))

	_, err = listener.AddSymbols(context.Background(), nil)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = listener.AddSymbols(context.Background(), []string{"BTC-USD"})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidChannel))

	bad := suite.config()
	bad.Intervals = nil
	_, err = ingest.NewKlineListener(bad, suite.registry, nil, logger.NewNop())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

type otherEvent struct{}

func (otherEvent) Kind() protocol.EventKind { return "trade" }
func (otherEvent) Key() string              { return "BTCUSDT" }

func (suite *ListenerTestSuite) TestHandleEventRejectsOtherKinds() {
	suite.setup(suite.config())

	err := suite.listener.HandleEvent(context.Background(), otherEvent{})
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownEvent))
}
