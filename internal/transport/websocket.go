package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// WebsocketConfig configures the websocket transport.
type WebsocketConfig struct {
	// URL is the stream endpoint, e.g. wss://stream.binance.com:9443/ws
	URL string `yaml:"url" json:"url" jsonschema:"title=URL,default=wss://stream.binance.com:9443/ws" validate:"required,url"`
	// HandshakeTimeout bounds each dial attempt
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout" jsonschema:"title=Handshake Timeout"`
	// ReadTimeout closes the connection when nothing, not even a pong, arrives for this long
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout" jsonschema:"title=Read Timeout"`
	// WriteTimeout bounds each write
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" jsonschema:"title=Write Timeout"`
	// DialRetries is the number of extra dial attempts after the first one fails
	DialRetries uint64 `yaml:"dial_retries" json:"dial_retries" jsonschema:"title=Dial Retries"`
}

// DefaultWebsocketConfig returns the Binance spot stream defaults.
func DefaultWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		URL:              "wss://stream.binance.com:9443/ws",
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      3 * time.Minute,
		WriteTimeout:     5 * time.Second,
		DialRetries:      3,
	}
}

// WebsocketTransport is a Transport over a gorilla websocket connection.
type WebsocketTransport struct {
	conn   *websocket.Conn
	cfg    WebsocketConfig
	log    *logger.Logger
	writeM sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to cfg.URL, retrying with exponential backoff.
func Dial(ctx context.Context, cfg WebsocketConfig, log *logger.Logger) (*WebsocketTransport, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	var conn *websocket.Conn

	operation := func() error {
		c, resp, err := dialer.DialContext(ctx, cfg.URL, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}

			return err
		}

		conn = c

		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.DialRetries), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		log.Warn("Dial failed, retrying",
			zap.String("url", cfg.URL),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeTransportDial, err, "failed to dial %s", cfg.URL)
	}

	log.Info("Connected", zap.String("url", cfg.URL))

	return newWebsocketTransport(conn, cfg, log), nil
}

func newWebsocketTransport(conn *websocket.Conn, cfg WebsocketConfig, log *logger.Logger) *WebsocketTransport {
	t := &WebsocketTransport{
		conn:      conn,
		cfg:       cfg,
		log:       log,
		writeM:    sync.Mutex{},
		closeOnce: sync.Once{},
		closed:    make(chan struct{}),
	}

	if cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		})

		conn.SetPingHandler(func(payload string) error {
			_ = conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

			err := conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(time.Second))
			if err == websocket.ErrCloseSent {
				return nil
			}

			return err
		})

		go t.keepAlive(cfg.ReadTimeout / 3)
	}

	return t
}

func (t *WebsocketTransport) keepAlive(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				t.log.Warn("Ping failed", zap.Error(err))
			}
		}
	}
}

// Send writes a text message.
func (t *WebsocketTransport) Send(ctx context.Context, data []byte) error {
	select {
	case <-t.closed:
		return errors.New(errors.ErrCodeTransportClosed, "transport is closed")
	default:
	}

	t.writeM.Lock()
	defer t.writeM.Unlock()

	deadline := time.Time{}
	if t.cfg.WriteTimeout > 0 {
		deadline = time.Now().Add(t.cfg.WriteTimeout)
	}

	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}

	_ = t.conn.SetWriteDeadline(deadline)

	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(errors.ErrCodeTransportWrite, "failed to write message", err)
	}

	return nil
}

// Receive reads the next data message. Control frames are handled internally.
func (t *WebsocketTransport) Receive(_ context.Context) ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		select {
		case <-t.closed:
			return nil, errors.Wrap(errors.ErrCodeTransportClosed, "transport is closed", err)
		default:
		}

		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, errors.Wrap(errors.ErrCodeTransportClosed, "connection closed by peer", err)
		}

		return nil, errors.Wrap(errors.ErrCodeTransportRead, "failed to read message", err)
	}

	if t.cfg.ReadTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
	}

	return data, nil
}

// Close sends a close frame and closes the connection.
func (t *WebsocketTransport) Close() error {
	var err error

	t.closeOnce.Do(func() {
		close(t.closed)

		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)

		err = t.conn.Close()
	})

	return err
}
