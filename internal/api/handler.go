// Package api exposes the query service over HTTP. Handlers are thin: they
// decode requests, call the service, and shape responses. All admission
// decisions live below the service boundary.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bendichter/dandi-sql/internal/catalog"
	"github.com/bendichter/dandi-sql/internal/schema"
	"github.com/bendichter/dandi-sql/internal/service"
)

// APIHandler holds the services the HTTP surface is built on.
type APIHandler struct {
	query    *service.QueryService
	datasets *catalog.Service
	registry *schema.Registry
	logger   *slog.Logger
}

// NewHandler builds the API handler.
func NewHandler(query *service.QueryService, datasets *catalog.Service, registry *schema.Registry, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		query:    query,
		datasets: datasets,
		registry: registry,
		logger:   logger.With("component", "api"),
	}
}

// Routes mounts every endpoint on a fresh router. Middleware is applied by
// the caller so tests can exercise handlers without rate limiting.
func (h *APIHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/sql/validate/", h.ValidateSQL)
		r.Post("/sql/execute/", h.ExecuteSQL)
		r.Get("/sql/schema/", h.SQLSchema)

		r.Post("/query/", h.ExecuteQuery)
		r.Post("/query/validate/", h.ValidateQuery)
		r.Get("/query/schema/", h.QuerySchema)
		r.Get("/query/examples/", h.QueryExamples)

		r.Get("/datasets/", h.ListDatasets)
	})
	r.Get("/healthz", h.Health)

	return r
}

// Health reports liveness and storage reachability.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.query.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  "storage unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON decodes a request body, rejecting unknown fields so typos in
// caller documents fail loudly instead of being silently ignored.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
