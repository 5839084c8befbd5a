package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/runner"
	"github.com/JakeFAU/vocabsync/internal/store"
)

type startRunRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) listRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.registry.List()})
}

// startRun handles POST /v1/runs with {"kind": "..."}. It answers 202 with
// the new run, 404 for an unknown kind, 409 while a run of that kind is
// active, or 503 during shutdown.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind == "" {
		writeError(w, http.StatusBadRequest, "kind required")
		return
	}
	fn, ok := s.jobs[kind]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown run kind")
		return
	}
	h, err := s.registry.Start(context.WithoutCancel(r.Context()), kind, fn)
	switch {
	case err == nil:
	case errors.Is(err, runner.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, runner.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		s.logger.Error("start run failed", zap.String("kind", kind), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run": h.Snapshot()})
}

// getRun answers from the live registry first and falls back to recorded
// history for runs started by an earlier process.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h, ok := s.registry.Get(id); ok {
		writeJSON(w, http.StatusOK, map[string]any{"run": h.Snapshot()})
		return
	}
	run, err := s.history.lookup(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errNoHistory):
		writeError(w, http.StatusNotFound, "run not found")
	default:
		s.logger.Error("get run failed", zap.Stringer("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
	}
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.registry.Cancel(id); err != nil {
		if errors.Is(err, runner.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id.String(), "status": "canceling"})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return id, nil
}
