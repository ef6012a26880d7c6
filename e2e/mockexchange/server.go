// Package mockexchange provides a mock exchange for end to end tests. It
// speaks the subscription protocol over a websocket, streams generated klines
// for subscribed channels and serves kline history over REST.
package mockexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/internal/stream/streamtest"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/mocks"
)

// Config holds configuration for the mock exchange.
type Config struct {
	// StreamInterval is the delay between two streamed updates of a channel
	StreamInterval time.Duration
	// History is the number of closed candles before the first streamed one
	History int
	// SpikeEvery multiplies the volume of every N-th streamed candle by ten, 0 disables
	SpikeEvery int
	Seed       int64
}

// DefaultConfig streams quickly enough for tests.
func DefaultConfig() Config {
	return Config{
		StreamInterval: 20 * time.Millisecond,
		History:        50,
		SpikeEvery:     0,
		Seed:           7,
	}
}

// MockExchange is a mock exchange server.
type MockExchange struct {
	mu sync.RWMutex

	cfg        Config
	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	series   map[protocol.ChannelName][]types.Candle
	conns    map[*session]struct{}
	requests []protocol.Request

	stopStreaming chan struct{}
	stopOnce      sync.Once
}

// session is one websocket client and its subscriptions.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu            sync.Mutex
	subscriptions map[protocol.ChannelName]int
	sentOpen      map[protocol.ChannelName]bool
}

// NewMockExchange creates a mock exchange.
func NewMockExchange(cfg Config) *MockExchange {
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = DefaultConfig().StreamInterval
	}

	return &MockExchange{
		mu:         sync.RWMutex{},
		cfg:        cfg,
		httpServer: nil,
		listener:   nil,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		series:        make(map[protocol.ChannelName][]types.Candle),
		conns:         make(map[*session]struct{}),
		requests:      nil,
		stopStreaming: make(chan struct{}),
		stopOnce:      sync.Once{},
	}
}

// Start starts the server on address, ":0" picks a free port.
func (s *MockExchange) Start(address string) error {
	if address == "" {
		address = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/api/v3/klines", s.handleKlines).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop closes every connection and shuts the server down.
func (s *MockExchange) Stop() error {
	s.stopOnce.Do(func() { close(s.stopStreaming) })
	s.DropConnections()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// DropConnections closes every websocket connection, as a network failure would.
func (s *MockExchange) DropConnections() {
	s.mu.Lock()
	conns := make([]*session, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close()
	}
}

// Connections returns the number of open websocket connections.
func (s *MockExchange) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.conns)
}

// BaseURL returns the REST base URL.
func (s *MockExchange) BaseURL() string {
	return "http://" + s.listener.Addr().String()
}

// WebSocketURL returns the stream URL.
func (s *MockExchange) WebSocketURL() string {
	return "ws://" + s.listener.Addr().String() + "/ws"
}

// Requests returns the control requests received on any connection.
func (s *MockExchange) Requests() []protocol.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.requests)
}

// Subscriptions returns the union of the subscriptions of open connections, sorted.
func (s *MockExchange) Subscriptions() []string {
	s.mu.RLock()
	conns := make([]*session, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	var out []string

	for _, c := range conns {
		c.mu.Lock()
		for channel := range c.subscriptions {
			out = append(out, channel.String())
		}
		c.mu.Unlock()
	}

	slices.Sort(out)

	return slices.Compact(out)
}

// candles returns the generated series of a channel: History closed candles
// followed by the ones to stream.
func (s *MockExchange) candles(channel protocol.ChannelName) ([]types.Candle, error) {
	id, err := channel.ProcessorID()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if series, ok := s.series[channel]; ok {
		return series, nil
	}

	step := id.Interval.Duration()
	start := time.Now().Truncate(step).Add(-time.Duration(s.cfg.History) * step)

	config := mocks.DefaultConfig()
	config.Symbol = id.Symbol
	config.Interval = id.Interval
	config.Step = step
	config.StartTime = start
	config.Count = s.cfg.History + 10000

	series := mocks.NewCandleGenerator(s.cfg.Seed).Generate(config)
	s.series[channel] = series

	return series, nil
}

// handleKlines handles GET /api/v3/klines, returning the latest history candles.
func (s *MockExchange) handleKlines(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	interval := r.URL.Query().Get("interval")

	if symbol == "" || interval == "" {
		http.Error(w, "Missing required parameters", http.StatusBadRequest)

		return
	}

	channel, err := protocol.NewKlineChannel(symbol, types.Interval(interval))
	if err != nil {
		http.Error(w, "Invalid symbol or interval", http.StatusBadRequest)

		return
	}

	series, err := s.candles(channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	history := series[:s.cfg.History]

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(history) {
		history = history[len(history)-limit:]
	}

	// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, takerBase, takerQuote, ignore]
	klines := make([][]any, 0, len(history))
	for _, c := range history {
		klines = append(klines, []any{
			c.OpenTime.UnixMilli(),
			c.Open.String(),
			c.High.String(),
			c.Low.String(),
			c.Close.String(),
			c.Volume.String(),
			c.CloseTime.UnixMilli(),
			c.QuoteVolume.String(),
			c.Trades,
			"0",
			"0",
			"0",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(klines)
}

// handleWebSocket serves one client: control requests are answered as they
// arrive while subscribed channels stream on a ticker.
func (s *MockExchange) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &session{
		conn:          conn,
		writeMu:       sync.Mutex{},
		mu:            sync.Mutex{},
		subscriptions: make(map[protocol.ChannelName]int),
		sentOpen:      make(map[protocol.ChannelName]bool),
	}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	done := make(chan struct{})

	defer func() {
		close(done)

		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()

		_ = conn.Close()
	}()

	go s.streamKlines(c, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		s.handleRequest(c, data)
	}
}

func (s *MockExchange) handleRequest(c *session, data []byte) {
	var request protocol.Request
	if err := json.Unmarshal(data, &request); err != nil {
		_ = c.write(streamtest.ErrorReply(0, 2, "Invalid JSON"))

		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, request)
	s.mu.Unlock()

	var result any

	switch request.Method {
	case protocol.MethodSubscribe:
		for _, param := range request.Params {
			raw, _ := param.(string)

			channel, err := protocol.ParseChannelName(raw)
			if err != nil {
				_ = c.write(streamtest.ErrorReply(request.ID, 2, "Invalid request: unknown channel "+raw))

				return
			}

			c.mu.Lock()
			if _, ok := c.subscriptions[channel]; !ok {
				c.subscriptions[channel] = s.cfg.History
			}
			c.mu.Unlock()
		}
	case protocol.MethodUnsubscribe:
		c.mu.Lock()
		for _, param := range request.Params {
			raw, _ := param.(string)
			delete(c.subscriptions, protocol.ChannelName(raw))
		}
		c.mu.Unlock()
	case protocol.MethodListSubscriptions:
		c.mu.Lock()
		list := make([]string, 0, len(c.subscriptions))
		for channel := range c.subscriptions {
			list = append(list, channel.String())
		}
		c.mu.Unlock()

		slices.Sort(list)
		result = list
	case protocol.MethodSetProperty:
	default:
		_ = c.write(streamtest.ErrorReply(request.ID, 2, "Invalid request: unknown method "+string(request.Method)))

		return
	}

	_ = c.write(streamtest.Reply(request.ID, result))
}

// streamKlines sends every subscribed channel's current candle on each tick:
// first as an open update, then closed on the following tick.
func (s *MockExchange) streamKlines(c *session, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.StreamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopStreaming:
			return
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			channels := make([]protocol.ChannelName, 0, len(c.subscriptions))
			for channel := range c.subscriptions {
				channels = append(channels, channel)
			}
			c.mu.Unlock()

			slices.Sort(channels)

			for _, channel := range channels {
				if err := s.sendNext(c, channel); err != nil {
					return
				}
			}
		}
	}
}

func (s *MockExchange) sendNext(c *session, channel protocol.ChannelName) error {
	series, err := s.candles(channel)
	if err != nil {
		return nil
	}

	c.mu.Lock()
	index, ok := c.subscriptions[channel]
	if !ok || index >= len(series) {
		c.mu.Unlock()

		return nil
	}

	candle := series[index]
	closed := c.sentOpen[channel]

	if closed {
		c.subscriptions[channel] = index + 1
		delete(c.sentOpen, channel)
	} else {
		c.sentOpen[channel] = true
	}
	c.mu.Unlock()

	if s.cfg.SpikeEvery > 0 && (index-s.cfg.History+1)%s.cfg.SpikeEvery == 0 {
		candle.Volume = candle.Volume.Mul(decimal.NewFromInt(10))
		candle.Close = candle.Open.Add(decimal.NewFromInt(1))
	}

	candle.Closed = closed

	data, err := json.Marshal(protocol.NewKlineEvent(candle, time.Now()))
	if err != nil {
		return err
	}

	return c.write(data)
}

func (c *session) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteMessage(websocket.TextMessage, data)
}
