// Package statusapi is the operator console: read-only HTTP views of a
// running bridge session plus Prometheus metrics.
package statusapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"moos-bridge/internal/bridge"
	"moos-bridge/internal/core/network"
	"moos-bridge/internal/message"
)

type Server struct {
	host      *bridge.Host
	transport network.PubSub
	prefix    string
	logger    zerolog.Logger
}

// NewServer serves host. transport may be nil, which disables topic streams.
func NewServer(host *bridge.Host, transport network.PubSub, topicPrefix string, logger zerolog.Logger) *Server {
	return &Server{host: host, transport: transport, prefix: topicPrefix, logger: logger}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/bridge/status", s.handleStatus)
	mux.HandleFunc("/api/bridge/inbound", s.handleInbound)
	mux.HandleFunc("/api/bridge/topic/", s.handleTopic)
	mux.Handle("/metrics", promhttp.Handler())
}

type valueView struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

func viewOf(v message.Value) valueView {
	if n, err := v.Numeric(); err == nil {
		return valueView{Kind: v.Kind().String(), Value: n}
	}
	t, _ := v.Textual()
	return valueView{Kind: v.Kind().String(), Value: t}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.host == nil {
		writeError(w, http.StatusServiceUnavailable, "bridge unavailable")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	report, ok := s.host.LastReport()
	body := map[string]any{
		"app":           s.host.Name(),
		"session":       uint64(s.host.Session()),
		"subscriptions": s.host.Subscriptions(),
		"report":        report,
		"has_report":    ok,
	}
	if s.transport != nil {
		body["online"] = network.IsOnline(s.transport)
		if p, ok := s.transport.(peerLister); ok {
			body["peers"] = p.ConnectedPeers()
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type peerLister interface {
	ConnectedPeers() []string
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if s.host == nil || s.host.Mailbox() == nil {
		writeError(w, http.StatusServiceUnavailable, "mailbox unavailable")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snapshot := s.host.Mailbox().ReadInbound()
	out := make(map[string]valueView, len(snapshot))
	for name, v := range snapshot {
		out[name] = viewOf(v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"inbound": out})
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	if s.transport == nil {
		writeError(w, http.StatusServiceUnavailable, "transport unavailable")
		return
	}
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/bridge/topic/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "stream" {
		writeError(w, http.StatusNotFound, "route not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.handleTopicStream(w, r, parts[0])
}

// handleTopicStream relays every decodable value published under name as an SSE event.
func (s *Server) handleTopicStream(w http.ResponseWriter, r *http.Request, name string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	ch, cancel, err := s.transport.Subscribe(s.prefix + name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			env, v, err := message.Decode(msg.Payload)
			if err != nil {
				s.logger.Debug().Err(err).Str("topic", msg.Topic).Msg("skipping undecodable payload")
				continue
			}
			b, _ := json.Marshal(map[string]any{
				"name":   env.Name,
				"source": env.Source,
				"time":   env.Time,
				"value":  viewOf(v),
			})
			if _, err := w.Write([]byte("event: value\ndata: " + string(b) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
