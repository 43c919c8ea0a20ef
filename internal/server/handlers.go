package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
	"go.uber.org/zap"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := strings.TrimSpace(params.Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter 'q' cannot be empty")
		return
	}
	skip, err := intParam(params.Get("skip"), 0)
	if err != nil || skip < 0 {
		s.respondError(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	limit, err := intParam(params.Get("limit"), s.config.Search.DefaultLimit)
	if err != nil || limit < 1 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}

	query := &models.SearchQuery{Query: q, Skip: skip, Limit: limit}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	gen, err := s.store.Current()
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "dataset still loading, please wait")
		return
	}

	s.logger.Debug("search request",
		zap.String("query", q),
		zap.Int("skip", skip),
		zap.Int("limit", limit),
		zap.String("generation_id", gen.ID))
	s.respondJSON(w, http.StatusOK, s.engine.Search(gen, query))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	gen, _ := s.store.Current()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"ready":        s.store.Ready(),
		"dataset_size": gen.Count(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	gen, _ := s.store.Current()
	resp := map[string]interface{}{
		"status":       "running",
		"ready":        s.store.Ready(),
		"dataset_size": gen.Count(),
		"endpoints": map[string]string{
			"search":  "/search?q=your_query",
			"health":  "/health",
			"refresh": "/refresh",
		},
	}
	if gen != nil {
		resp["generation_id"] = gen.ID
		resp["loaded_at"] = gen.CompletedAt
		if gen.SourceTotal > 0 {
			resp["source_total"] = gen.SourceTotal
		}
	}
	if s.loader != nil {
		resp["loading"] = s.loader.Loading()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		s.respondError(w, http.StatusNotImplemented, "refresh not enabled")
		return
	}
	// Detached from the request context: the reload outlives this request.
	if !s.loader.TryRefreshAsync(context.Background()) {
		s.respondError(w, http.StatusConflict, "refresh already in progress")
		return
	}
	s.logger.Info("refresh triggered")
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "refresh started"})
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
