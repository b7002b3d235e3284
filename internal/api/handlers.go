package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/dispatch"
	"github.com/mattjoyce/enginehost/internal/engine"
	"github.com/mattjoyce/enginehost/internal/host"
	"github.com/mattjoyce/enginehost/internal/uci"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := s.host.Stats()

	status := "ok"
	switch {
	case stats.WorkerState == dispatch.Stopped:
		status = "stopped"
	case stats.ShuttingDown:
		status = "stopping"
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:    stats.QueueDepth,
		WorkerState:   stats.WorkerState.String(),
		Processed:     stats.Processed,
		Ticks:         stats.Ticks,
	})
}

// handleSubmitCommands handles POST /engines/{engine}/commands
func (s *Server) handleSubmitCommands(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engineParam(w, r)
	if !ok {
		return
	}

	var req CommandsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Commands) == 0 {
		s.writeError(w, http.StatusBadRequest, "commands must be non-empty")
		return
	}

	ids := make([]string, 0, len(req.Commands))
	for _, text := range req.Commands {
		id, err := s.host.SubmitCommand(text, e)
		if err != nil {
			s.writeHostError(w, err)
			return
		}
		ids = append(ids, id)
	}

	s.logger.Info("commands queued via API", "engine", e, "count", len(ids))
	respondJSON(w, http.StatusAccepted, CommandsResponse{Engine: string(e), IDs: ids, Status: "queued"})
}

// handleLoadWeights handles PUT /engines/{engine}/weights with a raw body.
func (s *Server) handleLoadWeights(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engineParam(w, r)
	if !ok {
		return
	}
	if e != command.Neural {
		s.writeError(w, http.StatusConflict, "engine does not accept weights")
		return
	}

	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxWeightsBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "weights exceed size limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(buf) == 0 {
		s.writeError(w, http.StatusBadRequest, "weights body is empty")
		return
	}

	digest := engine.Digest(buf)
	size := len(buf)
	if err := s.searcher.LoadWeights(buf); err != nil {
		s.writeHostError(w, err)
		return
	}

	s.logger.Info("weights queued via API", "engine", e, "bytes", size, "digest", digest)
	respondJSON(w, http.StatusAccepted, WeightsResponse{
		Engine: string(e),
		Bytes:  size,
		Digest: digest,
		Status: "queued",
	})
}

// handleSearchClassical handles POST /search/classical and waits for bestmove.
func (s *Server) handleSearchClassical(w http.ResponseWriter, r *http.Request) {
	var req ClassicalSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.FEN) == "" {
		s.writeError(w, http.StatusBadRequest, "fen is required")
		return
	}
	if req.Depth < 0 || req.PVs < 0 || req.MoveTimeMS < 0 {
		s.writeError(w, http.StatusBadRequest, "depth, pvs and movetime_ms must not be negative")
		return
	}
	if !s.acquireSync(w) {
		return
	}
	defer s.releaseSync()

	start := time.Now()
	ch, err := s.searcher.GoFish(req.FEN, uci.SearchOpts{
		Depth:    req.Depth,
		PVs:      req.PVs,
		MoveTime: time.Duration(req.MoveTimeMS) * time.Millisecond,
	})
	if err != nil {
		s.writeHostError(w, err)
		return
	}

	timer := time.NewTimer(s.config.MaxSyncTimeout)
	defer timer.Stop()
	select {
	case pvs, ok := <-ch:
		if !ok {
			s.writeError(w, http.StatusConflict, "search superseded by a newer request")
			return
		}
		respondJSON(w, http.StatusOK, ClassicalSearchResponse{PVs: pvs, DurationMs: time.Since(start).Milliseconds()})
	case <-timer.C:
		s.writeTimeout(w)
	case <-r.Context().Done():
	}
}

// handleSearchNeural handles POST /search/neural and waits for bestmove.
func (s *Server) handleSearchNeural(w http.ResponseWriter, r *http.Request) {
	var req NeuralSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.FEN) == "" {
		s.writeError(w, http.StatusBadRequest, "fen is required")
		return
	}
	if !s.acquireSync(w) {
		return
	}
	defer s.releaseSync()

	start := time.Now()
	ch, err := s.searcher.GoZero(req.FEN)
	if err != nil {
		s.writeHostError(w, err)
		return
	}

	timer := time.NewTimer(s.config.MaxSyncTimeout)
	defer timer.Stop()
	select {
	case move, ok := <-ch:
		if !ok {
			s.writeError(w, http.StatusConflict, "search superseded by a newer request")
			return
		}
		respondJSON(w, http.StatusOK, NeuralSearchResponse{BestMove: move, DurationMs: time.Since(start).Milliseconds()})
	case <-timer.C:
		s.writeTimeout(w)
	case <-r.Context().Done():
	}
}

// handleShutdown handles POST /shutdown
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.host.RequestShutdown(); err != nil {
		s.writeHostError(w, err)
		return
	}
	stats := s.host.Stats()
	s.logger.Info("shutdown requested via API", "queue_depth", stats.QueueDepth)
	respondJSON(w, http.StatusAccepted, ShutdownResponse{Status: "shutting_down", QueueDepth: stats.QueueDepth})
}

// handleListCommands handles GET /commands?limit=N&engine=E
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "journal not configured")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	engineFilter := ""
	if v := r.URL.Query().Get("engine"); v != "" {
		e, err := command.ParseEngine(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		engineFilter = string(e)
	}

	records, err := s.journal.Recent(r.Context(), engineFilter, limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}

	resp := CommandListResponse{Commands: make([]CommandEntry, 0, len(records))}
	for _, rec := range records {
		resp.Commands = append(resp.Commands, CommandEntry{
			ID:           rec.ID,
			Engine:       rec.Engine,
			Kind:         rec.Kind,
			Payload:      rec.Payload,
			PayloadBytes: rec.PayloadBytes,
			EnqueuedAt:   rec.EnqueuedAt,
			StartedAt:    rec.StartedAt,
			CompletedAt:  rec.CompletedAt,
			DurationMs:   rec.Duration().Milliseconds(),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) engineParam(w http.ResponseWriter, r *http.Request) (command.Engine, bool) {
	e, err := command.ParseEngine(chi.URLParam(r, "engine"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	if !s.host.HasEngine(e) {
		s.writeError(w, http.StatusNotFound, "engine not configured")
		return "", false
	}
	return e, true
}

func (s *Server) acquireSync(w http.ResponseWriter) bool {
	select {
	case s.syncSemaphore <- struct{}{}:
		return true
	default:
		s.logger.Warn("too many concurrent synchronous requests")
		s.writeError(w, http.StatusServiceUnavailable, "too many concurrent searches, please try again later")
		return false
	}
}

func (s *Server) releaseSync() {
	<-s.syncSemaphore
}

func (s *Server) writeTimeout(w http.ResponseWriter) {
	respondJSON(w, http.StatusAccepted, TimeoutResponse{
		Status:          "running",
		TimeoutExceeded: true,
		Message:         "search still running after timeout; watch /events for engine output",
	})
}

// writeHostError maps dispatcher sentinel errors to HTTP statuses.
func (s *Server) writeHostError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, host.ErrShuttingDown):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, host.ErrUnknownEngine):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, host.ErrWeightsUnsupported), errors.Is(err, uci.ErrNoWeights):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
