package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mir00r/haproxy-gen/internal/domain"
	"github.com/mir00r/haproxy-gen/internal/repository"
	"github.com/mir00r/haproxy-gen/pkg/logger"
)

// DocumentProvider synthesizes the current configuration document for the
// admin API. Satisfied by the service Builder.
type DocumentProvider interface {
	Generate(spec domain.RoutingSpec) (domain.ConfigDocument, error)
}

// AdminHandler exposes the generated configuration and the registered
// services for inspection
type AdminHandler struct {
	provider  DocumentProvider
	registry  *repository.InMemoryServiceRegistry
	spec      domain.RoutingSpec
	logger    *logger.Logger
	startTime time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(provider DocumentProvider, registry *repository.InMemoryServiceRegistry, spec domain.RoutingSpec, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		provider:  provider,
		registry:  registry,
		spec:      spec,
		logger:    log.AdminLogger(),
		startTime: time.Now(),
	}
}

// ServiceResponse represents service information in API responses
type ServiceResponse struct {
	Name      string   `json:"name"`
	Endpoints []string `json:"endpoints"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse represents error responses
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// RegisterRoutes registers the admin endpoints on the given router
func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/services", h.ListServicesHandler).Methods(http.MethodGet)
	router.HandleFunc("/config", h.GetConfigHandler).Methods(http.MethodGet)
}

// HealthHandler handles GET /healthz
func (h *AdminHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ListServicesHandler handles GET /services
func (h *AdminHandler) ListServicesHandler(w http.ResponseWriter, r *http.Request) {
	services := h.registry.List()

	response := make([]ServiceResponse, 0, len(services))
	for _, svc := range services {
		response = append(response, ServiceResponse{
			Name:      svc.Name(),
			Endpoints: svc.Endpoints(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	h.logger.WithField("count", len(response)).Debug("Listed services")
}

// GetConfigHandler handles GET /config; it regenerates the document from the
// current endpoint snapshots, so the response always reflects live topology
func (h *AdminHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := h.provider.Generate(h.spec)
	if err != nil {
		h.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for _, content := range doc {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(content))
		return
	}
}

// writeErrorResponse writes a structured error response
func (h *AdminHandler) writeErrorResponse(w http.ResponseWriter, message string, code int) {
	h.logger.WithField("status", code).Error(message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	})
}
