package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/store"
)

type HealthServer struct {
	manager *store.Manager
	server  *http.Server
}

func NewHealthServer(manager *store.Manager) *HealthServer {
	return &HealthServer{
		manager: manager,
	}
}

func (h *HealthServer) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.healthCheckHandler)

	h.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return h.server.ListenAndServe()
}

func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server != nil {
		return h.server.Shutdown(ctx)
	}
	return nil
}

func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	statuses := h.manager.HealthCheckAll(r.Context())

	healthy := len(statuses) > 0
	for _, ok := range statuses {
		if !ok {
			healthy = false
			break
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"stores": statuses,
	})
}
