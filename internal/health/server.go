// Package health exposes the bridge's liveness status and Prometheus
// metrics over HTTP so an operator or orchestrator can watch both gateway
// connections without tailing logs.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GatewayStatus reports one side's connection state.
type GatewayStatus struct {
	Name  string
	Ready bool
	Err   error
}

// StatusProvider supplies the live state /healthz reports.
type StatusProvider interface {
	GatewayStatuses() []GatewayStatus
}

// Server serves /healthz and /metrics.
type Server struct {
	provider  StatusProvider
	startedAt time.Time
	registry  *prometheus.Registry

	messagesRelayed *prometheus.CounterVec
	relayErrors     *prometheus.CounterVec
}

// NewServer wires a health server around provider, with its own Prometheus
// registry rather than the global default, so each bridge process (and each
// test) registers counters without colliding with another instance.
func NewServer(provider StatusProvider) *Server {
	messagesRelayed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_messages_relayed_total",
			Help: "Total number of messages relayed between endpoints.",
		},
		[]string{"direction", "kind"},
	)
	relayErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_relay_errors_total",
			Help: "Total number of errors encountered while relaying a message.",
		},
		[]string{"direction"},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(messagesRelayed, relayErrors)

	return &Server{
		provider:        provider,
		startedAt:       time.Now(),
		registry:        registry,
		messagesRelayed: messagesRelayed,
		relayErrors:     relayErrors,
	}
}

// RecordRelay increments the relayed-message counter for direction/kind
// (e.g. "Discord", "create"; the bridge engine passes the source side's
// name as the direction).
func (s *Server) RecordRelay(direction, kind string) {
	s.messagesRelayed.WithLabelValues(direction, kind).Inc()
}

// RecordError increments the relay-error counter for direction.
func (s *Server) RecordError(direction string) {
	s.relayErrors.WithLabelValues(direction).Inc()
}

// Router builds the mux.Router serving /healthz and /metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

type healthResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds int             `json:"uptime_seconds"`
	Gateways      []gatewayStatus `json:"gateways"`
}

type gatewayStatus struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	statuses := s.provider.GatewayStatuses()

	resp := healthResponse{
		Status:        "healthy",
		UptimeSeconds: int(time.Since(s.startedAt).Seconds()),
	}
	for _, gs := range statuses {
		entry := gatewayStatus{Name: gs.Name, Ready: gs.Ready}
		if gs.Err != nil {
			entry.Error = gs.Err.Error()
			resp.Status = "unhealthy"
		}
		if !gs.Ready {
			resp.Status = "unhealthy"
		}
		resp.Gateways = append(resp.Gateways, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
