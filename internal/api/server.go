// Package api serves the HTTP control surface: health, metrics, symbol
// subscriptions, processor inspection and rule toggles.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rxtech-lab/kline-sentinel/internal/ingest"
	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/metrics"
	"github.com/rxtech-lab/kline-sentinel/internal/processor"
	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Subscriptions exposes the live subscription state.
type Subscriptions interface {
	ActiveChannels() []protocol.ChannelName
}

// Server is the control API.
type Server struct {
	router   *mux.Router
	listener ingest.Listener
	registry processor.Registry
	subs     Subscriptions
	metrics  *metrics.Metrics
	log      *logger.Logger
	started  time.Time
}

// NewServer wires the routes. collector may be nil, in which case /metrics is not served.
func NewServer(
	listener ingest.Listener,
	registry processor.Registry,
	subs Subscriptions,
	collector *metrics.Metrics,
	log *logger.Logger,
) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		listener: listener,
		registry: registry,
		subs:     subs,
		metrics:  collector,
		log:      log.Named("api"),
		started:  time.Now(),
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/subscriptions", s.handleSubscriptions).Methods(http.MethodGet)
	v1.HandleFunc("/symbols", s.handleAddSymbols).Methods(http.MethodPost)
	v1.HandleFunc("/symbols", s.handleRemoveSymbols).Methods(http.MethodDelete)
	v1.HandleFunc("/processors", s.handleProcessors).Methods(http.MethodGet)
	v1.HandleFunc("/processors/{symbol}/{interval}/config", s.handleSetConfig).Methods(http.MethodPut)
	v1.HandleFunc("/rules/{kind}", s.handleEnableRule).Methods(http.MethodPut)
	v1.HandleFunc("/rules/{kind}", s.handleDisableRule).Methods(http.MethodDelete)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("Control API listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == nil || err == http.ErrServerClosed {
			return nil
		}

		return errors.Wrap(errors.ErrCodeUnknown, "control API failed", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(errors.ErrCodeUnknown, "control API shutdown failed", err)
		}

		return nil
	}
}

type errorResponse struct {
	Error string           `json:"error"`
	Code  errors.ErrorCode `json:"code"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Code: errors.GetCode(err)})
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	code := errors.GetCode(err)

	switch {
	case code == errors.ErrCodeProcessorNotFound, code == errors.ErrCodeRuleNotFound:
		return http.StatusNotFound
	case code == errors.ErrCodeProcessorAlreadyExists, code == errors.ErrCodeCapacityExceeded:
		return http.StatusConflict
	case code == errors.ErrCodeCorrelationTimeout:
		return http.StatusGatewayTimeout
	case code == errors.ErrCodeNotStarted, code == errors.ErrCodeOverloaded, errors.IsFatal(err):
		return http.StatusServiceUnavailable
	case code >= errors.ErrCodeInvalidParameter && code < errors.ErrCodeProtocol:
		return http.StatusBadRequest
	case code == errors.ErrCodeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
