package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/aqueductfluidics/aqueduct/internal/metrics"
)

// Pinger is the part of the hub client the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves /healthz (hub reachability) and /metrics for a
// running recipe.
type HealthServer struct {
	client  Pinger
	metrics *metrics.Collector
	logger  *log.Logger
	server  *http.Server
	addr    string
}

// NewHealthServer creates a health server. A nil collector disables
// /metrics.
func NewHealthServer(client Pinger, collector *metrics.Collector, logger *log.Logger) *HealthServer {
	return &HealthServer{
		client:  client,
		metrics: collector,
		logger:  logger,
	}
}

// Start listens on addr (":0" picks a free port) and serves in the
// background.
func (h *HealthServer) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h.addr = ln.Addr().String()

	h.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Printf("[ERROR] Health server error: %v", err)
		}
	}()

	h.logger.Printf("[INFO] Health server listening on %s", h.addr)
	return nil
}

// Addr is the address the server listens on, once started.
func (h *HealthServer) Addr() string { return h.addr }

// Shutdown gracefully shuts down the health server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if the hub's Redis is reachable, 503 otherwise.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy", Redis: "connected"}
	code := http.StatusOK

	if err := h.client.Ping(ctx); err != nil {
		response = HealthResponse{Status: "unhealthy", Redis: "disconnected", Error: err.Error()}
		code = http.StatusServiceUnavailable
	}
	if h.metrics != nil {
		h.metrics.SetHubUp(code == http.StatusOK)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}
