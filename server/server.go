// Package server exposes the ingestion pipeline, hybrid search, answer
// synthesis and episode memory over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/pkg/pipeline"
)

// Ingester runs the full ingestion flow for one URL.
type Ingester interface {
	IngestURL(ctx context.Context, url string) (*models.IngestResult, error)
}

// Searcher produces a hybrid retrieval report. It never errors; failures are
// rendered inside the report.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) string
}

// Synthesizer turns a retrieval report into a natural-language answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, report string) (string, error)
}

// EpisodeStore persists query/response cycles keyed by session.
type EpisodeStore interface {
	StoreEpisode(ctx context.Context, episode models.Episode) (models.Episode, error)
	RecentEpisodes(ctx context.Context, sessionID string, limit int) ([]models.Episode, error)
	UpdateFeedback(ctx context.Context, episodeID, feedback string) (bool, error)
	DeleteSessionEpisodes(ctx context.Context, sessionID string) (int64, error)
}

// GraphChecker reports whether the knowledge graph is reachable.
type GraphChecker interface {
	VerifyConnectivity(ctx context.Context) bool
}

type Server struct {
	ingester Ingester
	searcher Searcher
	chat     Synthesizer
	episodes EpisodeStore
	graph    GraphChecker
	router   *chi.Mux
}

func New(ingester Ingester, searcher Searcher, chat Synthesizer, episodes EpisodeStore, graph GraphChecker) *Server {
	s := &Server{
		ingester: ingester,
		searcher: searcher,
		chat:     chat,
		episodes: episodes,
		graph:    graph,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Post("/search", s.handleSearch)
		r.Post("/query", s.handleQuery)
		r.Get("/health", s.handleHealth)
		r.Post("/episodes/{episodeID}/feedback", s.handleFeedback)
		r.Route("/sessions/{sessionID}/episodes", func(r chi.Router) {
			r.Get("/", s.handleSessionEpisodes)
			r.Delete("/", s.handleDeleteSessionEpisodes)
		})
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe blocks serving the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	slog.Info("starting API server", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

type ingestRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "request body must include a url")
		return
	}

	result, err := s.ingester.IngestURL(r.Context(), req.URL)
	if err != nil {
		slog.Error("ingestion failed", "url", req.URL, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrScrapeFailed) || errors.Is(err, pipeline.ErrNoChunks) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Report string `json:"report"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "request body must include a query")
		return
	}

	report := s.searcher.Search(r.Context(), req.Query, req.Limit)
	writeJSON(w, http.StatusOK, searchResponse{Report: report})
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

type queryResponse struct {
	Answer    string `json:"answer"`
	Report    string `json:"report"`
	EpisodeID string `json:"episode_id,omitempty"`
}

// handleQuery runs hybrid search, synthesizes an answer grounded in the
// report, and logs the cycle as an episode when a session is given.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "request body must include a query")
		return
	}

	report := s.searcher.Search(r.Context(), req.Query, req.Limit)

	answer, err := s.chat.Synthesize(r.Context(), req.Query, report)
	if err != nil {
		slog.Error("answer synthesis failed", "error", err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("answer synthesis failed: %v", err))
		return
	}

	resp := queryResponse{Answer: answer, Report: report}

	if req.SessionID != "" {
		episode, err := s.episodes.StoreEpisode(r.Context(), models.Episode{
			SessionID:     req.SessionID,
			UserQuery:     req.Query,
			AgentResponse: answer,
			AgentPath:     "research",
			ToolsUsed:     []string{"hybrid_search"},
		})
		if err != nil {
			// Memory failures degrade the episode ID, not the answer.
			slog.Error("failed to store episode", "session_id", req.SessionID, "error", err)
		} else {
			resp.EpisodeID = episode.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	graphOK := s.graph.VerifyConnectivity(r.Context())

	status := http.StatusOK
	overall := "ok"
	if !graphOK {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status": overall,
		"graph":  graphOK,
	})
}

func (s *Server) handleSessionEpisodes(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	episodes, err := s.episodes.RecentEpisodes(r.Context(), sessionID, limit)
	if err != nil {
		slog.Error("failed to load episodes", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load episodes")
		return
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"episodes": episodes})
}

func (s *Server) handleDeleteSessionEpisodes(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	deleted, err := s.episodes.DeleteSessionEpisodes(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to delete episodes", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete episodes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	episodeID := chi.URLParam(r, "episodeID")

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Feedback == "" {
		writeError(w, http.StatusBadRequest, "request body must include feedback")
		return
	}

	found, err := s.episodes.UpdateFeedback(r.Context(), episodeID, req.Feedback)
	if err != nil {
		slog.Error("failed to update feedback", "episode_id", episodeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update feedback")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
