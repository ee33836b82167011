// Package admin provides the HTTP surface of the service: order placement
// and status for guests, queue inspection for baristas, plus health and
// metrics endpoints.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/infra/storage"
	"coffee-queue/internal/sync/classify"
	"coffee-queue/internal/sync/health"
	"coffee-queue/internal/sync/ordersync"
)

// Server provides HTTP endpoints over the sync layer.
type Server struct {
	sync    *ordersync.OrderSync
	monitor *health.Monitor
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates the HTTP server. monitor may be nil to disable the
// health endpoints' detail.
func NewServer(s *ordersync.OrderSync, monitor *health.Monitor, port int) *Server {
	mux := http.NewServeMux()
	srv := &Server{
		sync:    s,
		monitor: monitor,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		log: slog.Default().With("component", "admin"),
	}

	mux.HandleFunc("GET /orders", srv.handleListOrders)
	mux.HandleFunc("POST /orders", srv.handlePlaceOrder)
	mux.HandleFunc("GET /orders/{id}/status", srv.handleOrderStatus)
	mux.HandleFunc("POST /orders/{id}/status", srv.handleUpdateStatus)
	mux.HandleFunc("POST /sync/refresh", srv.handleRefresh)
	mux.HandleFunc("POST /sync/reconnect", srv.handleReconnect)
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("GET /health/detailed", srv.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())

	return srv
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.Orders())
}

type placeOrderRequest struct {
	GuestName string   `json:"guest_name"`
	Drink     string   `json:"drink"`
	Options   []string `json:"options"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.sync.PlaceOrder(r.Context(), storage.NewOrder{
		GuestName: req.GuestName,
		Drink:     req.Drink,
		Options:   req.Options,
	})
	if err != nil {
		s.writeClassified(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	qs, ok := s.sync.QueueStatus(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.sync.UpdateStatus(r.Context(), r.PathValue("id"), domain.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeClassified(w, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.sync.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	s.sync.Reconnect()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := health.StatusHealthy
	if s.monitor != nil {
		status = s.monitor.CheckHealth(r.Context()).Status
	}

	code := http.StatusOK
	if status == health.StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeError(w, http.StatusNotFound, "health monitor disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

// writeClassified maps an error's classification to an HTTP status. Errors
// that reach here already passed through the sync layer.
func (s *Server) writeClassified(w http.ResponseWriter, err error) {
	var ce *classify.Error
	if !errors.As(err, &ce) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	code := http.StatusBadGateway
	switch ce.Category {
	case classify.CategoryValidation:
		code = http.StatusBadRequest
	case classify.CategoryConflict:
		code = http.StatusConflict
	case classify.CategoryPermission:
		code = http.StatusForbidden
	}
	// The classified user message is what a guest-facing client shows.
	writeJSON(w, code, map[string]string{"error": ce.UserMessage})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
