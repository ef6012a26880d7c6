package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/kline-sentinel/internal/processor"
	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status        string  `json:"status"`
	Processors    int     `json:"processors"`
	Subscriptions int     `json:"subscriptions"`
	Uptime        float64 `json:"uptime_seconds"`
}

// SubscriptionsResponse is returned by GET /v1/subscriptions.
type SubscriptionsResponse struct {
	Symbols  []string               `json:"symbols"`
	Channels []protocol.ChannelName `json:"channels"`
}

// SymbolsRequest is the body of POST and DELETE /v1/symbols.
type SymbolsRequest struct {
	Symbols []string `json:"symbols"`
}

// ResultsResponse carries per-channel or per-processor outcomes.
type ResultsResponse struct {
	Results map[string]bool `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Processors:    s.registry.Len(),
		Subscriptions: len(s.subs.ActiveChannels()),
		Uptime:        time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, _ *http.Request) {
	channels := s.subs.ActiveChannels()
	if channels == nil {
		channels = []protocol.ChannelName{}
	}

	s.writeJSON(w, http.StatusOK, SubscriptionsResponse{
		Symbols:  s.listener.Symbols(),
		Channels: channels,
	})
}

func (s *Server) handleAddSymbols(w http.ResponseWriter, r *http.Request) {
	var body SymbolsRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)

		return
	}

	results, err := s.listener.AddSymbols(r.Context(), body.Symbols)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, ResultsResponse{Results: channelResults(results)})
}

func (s *Server) handleRemoveSymbols(w http.ResponseWriter, r *http.Request) {
	var body SymbolsRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)

		return
	}

	results, err := s.listener.RemoveSymbols(r.Context(), body.Symbols)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, ResultsResponse{Results: channelResults(results)})
}

func (s *Server) handleProcessors(w http.ResponseWriter, _ *http.Request) {
	statuses := s.registry.Statuses()
	if statuses == nil {
		statuses = []processor.Status{}
	}

	s.writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := types.NewProcessorID(vars["symbol"], types.Interval(vars["interval"]))
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid processor identity", err))

		return
	}

	p, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, errors.Newf(errors.ErrCodeProcessorNotFound, "no processor for %s", id))

		return
	}

	// Fields missing from the body keep their current values.
	cfg := p.GetConfig()
	if err := decodeBody(r, &cfg); err != nil {
		s.writeError(w, err)

		return
	}

	if err := p.SetConfig(cfg); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, p.Status())
}

func (s *Server) handleEnableRule(w http.ResponseWriter, r *http.Request) {
	s.toggleRule(w, r, s.registry.EnableRule)
}

func (s *Server) handleDisableRule(w http.ResponseWriter, r *http.Request) {
	s.toggleRule(w, r, s.registry.DisableRule)
}

type ruleToggle func(types.RuleKind, optional.Option[types.ProcessorID]) (map[types.ProcessorID]bool, error)

func (s *Server) toggleRule(w http.ResponseWriter, r *http.Request, toggle ruleToggle) {
	kind := types.RuleKind(mux.Vars(r)["kind"])

	target, err := targetFromQuery(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	results, err := toggle(kind, target)
	if err != nil {
		s.writeError(w, err)

		return
	}

	out := make(map[string]bool, len(results))
	for id, ok := range results {
		out[id.String()] = ok
	}

	s.writeJSON(w, http.StatusOK, ResultsResponse{Results: out})
}

// targetFromQuery reads ?symbol=&interval=. Without a symbol the toggle
// applies to every processor.
func targetFromQuery(r *http.Request) (optional.Option[types.ProcessorID], error) {
	query := r.URL.Query()

	symbol := query.Get("symbol")
	if symbol == "" {
		if query.Get("interval") != "" {
			return optional.None[types.ProcessorID](), errors.New(errors.ErrCodeMissingParameter, "interval given without symbol")
		}

		return optional.None[types.ProcessorID](), nil
	}

	id, err := types.NewProcessorID(symbol, types.Interval(query.Get("interval")))
	if err != nil {
		return optional.None[types.ProcessorID](), errors.Wrap(errors.ErrCodeInvalidParameter, "invalid processor identity", err)
	}

	return optional.Some(id), nil
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "invalid request body", err)
	}

	return nil
}

func channelResults(results map[protocol.ChannelName]bool) map[string]bool {
	out := make(map[string]bool, len(results))
	for channel, ok := range results {
		out[channel.String()] = ok
	}

	return out
}
