// Package httpapi exposes a subset of the memory facade over HTTP:
// health checks, aggregate stats, and semantic search. It is a thin
// transport shim — all actual work is done by memory.Service.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/thebtf/memvault/internal/memory"
)

// Server wires memory.Service operations onto a chi router.
type Server struct {
	svc    *memory.Service
	router chi.Router
}

// New builds a Server with routes mounted and ready to serve.
func New(svc *memory.Service) *Server {
	s := &Server{svc: svc, router: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)
	s.router.Post("/search", s.handleSearch)

	s.router.Get("/swagger/doc.json", s.handleSwaggerDoc)
	s.router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

// ServeHTTP lets Server satisfy http.Handler directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth godoc
// @Summary      Health check
// @Description  Reports whether the memory store is initialized and its connection pool is reachable.
// @Tags         operations
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats godoc
// @Summary      Aggregate statistics
// @Description  Returns pool occupancy, per-namespace cache hit rates, and vector-index coverage.
// @Tags         operations
// @Success      200  {object}  memory.Stats
// @Failure      500  {object}  map[string]string
// @Router       /stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.GetStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type searchRequest struct {
	Vector    []float32 `json:"vector"`
	Limit     int       `json:"limit"`
	Threshold float64   `json:"threshold"`
	ProjectID string    `json:"projectId"`
	ChannelID string    `json:"channelId"`
	Tier      *int      `json:"tier"`
	Tags      []string  `json:"tags"`
}

// handleSearch godoc
// @Summary      Semantic search
// @Description  Scans rules, project docs, and refs for rows whose embedding is similar to the given query vector.
// @Tags         search
// @Accept       json
// @Produce      json
// @Param        request  body      searchRequest  true  "search request"
// @Success      200      {array}   vectorindex.SearchResult
// @Failure      400      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Vector) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "vector is required"})
		return
	}

	results, err := s.svc.SemanticSearch(r.Context(), req.Vector, memory.SearchOptions{
		Limit:     req.Limit,
		Threshold: req.Threshold,
		ProjectID: req.ProjectID,
		ChannelID: req.ChannelID,
		Tier:      req.Tier,
		Tags:      req.Tags,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
