// Package api serves the query surface: CRUD over the record collection, the
// grouped/paginated listing, the latest-reading lookup, and the WebSocket
// stream endpoint.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sensorhub/internal/cache"
	"github.com/sensorhub/internal/store"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

type Server struct {
	store store.Storage
	hub   StreamHub
	cache *cache.Cache
	log   *slog.Logger
}

// StreamHub is the part of the fan-out hub the API needs.
type StreamHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

func New(st store.Storage, hub StreamHub, c *cache.Cache, log *slog.Logger) *Server {
	return &Server{store: st, hub: hub, cache: c, log: log}
}

// Routes builds the handler tree with CORS applied to everything.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /sensor", s.handleCreate)
	mux.HandleFunc("GET /sensor", s.handleList)
	mux.HandleFunc("GET /sensor/latest", s.handleLatest)
	mux.HandleFunc("GET /sensor/{id}", s.handleGet)
	mux.HandleFunc("PATCH /sensor/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /sensor/{id}", s.handleDelete)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.ServeWS)
		mux.HandleFunc("GET /ws/stats", s.handleStreamStats)
	}
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("Hello World!"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleStreamStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected_clients": s.hub.ClientCount(),
		"timestamp":         time.Now().Unix(),
	})
}

// handleCreate persists the caller's body as-is. Unlike the ingest path it
// does no time/sensor field extraction, so API-created documents can have a
// different shape than broker-created ones.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var doc store.Record
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// A literal null body decodes without error into a nil map.
	if doc == nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}
	created, err := s.store.Insert(r.Context(), doc)
	if err != nil {
		s.log.Error("create failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type listResult struct {
	TotalPages  int64         `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Data        []store.Group `json:"data"`
}

type listEnvelope struct {
	Status  int        `json:"status"`
	Message string     `json:"message"`
	Result  listResult `json:"result"`
}

// handleList runs the grouped listing. Store failures degrade to an empty
// page with totalPages 0 instead of an error response, to keep the historical
// contract of this endpoint.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page := positiveIntParam(r, "page", defaultPage)
	limit := positiveIntParam(r, "limit", defaultLimit)

	result := listResult{CurrentPage: page, Data: []store.Group{}}
	groups, err := s.store.ListGrouped(r.Context(), page, limit)
	if err == nil {
		var count int64
		count, err = s.store.CountGroups(r.Context())
		if err == nil {
			result.Data = groups
			result.TotalPages = (count + int64(limit) - 1) / int64(limit)
		}
	}
	if err != nil {
		s.log.Error("grouped listing failed, returning empty page", "error", err)
		result = listResult{CurrentPage: page, Data: []store.Group{}}
	}

	writeJSON(w, http.StatusOK, listEnvelope{
		Status:  http.StatusOK,
		Message: "success",
		Result:  result,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		writeError(w, http.StatusBadRequest, "topic query parameter required")
		return
	}
	raw, err := s.cache.Get(r.Context(), topic)
	if errors.Is(err, cache.ErrMiss) {
		writeError(w, http.StatusNotFound, "no cached reading for topic")
		return
	}
	if err != nil {
		s.log.Error("latest-reading lookup failed", "topic", topic, "error", err)
		writeError(w, http.StatusInternalServerError, "cache error")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(raw)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		s.log.Error("get failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch store.Record
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	record, err := s.store.Update(r.Context(), id, patch)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		s.log.Error("update failed", "id", id, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		s.log.Error("delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sensor data deleted"})
}

// pathID parses the {id} path segment. A malformed id is a client error,
// never a crash.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed id")
		return 0, false
	}
	return id, true
}

// positiveIntParam reads a positive integer query parameter, falling back on
// absent, non-numeric, or non-positive values.
func positiveIntParam(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
