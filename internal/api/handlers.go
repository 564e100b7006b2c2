package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/forkjoin/internal/journal"
)

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleListRuns handles GET /runs?limit=N.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	respondJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// handleGetRun handles GET /runs/{runID}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.history.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("failed to retrieve run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// handleListTasks handles GET /runs/{runID}/tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if _, err := s.history.GetRun(r.Context(), runID); err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("failed to retrieve run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve run")
		return
	}

	tasks, err := s.history.ListTasks(r.Context(), runID)
	if err != nil {
		s.logger.Error("failed to list tasks", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	s.writeTasks(w, tasks)
}

// handleGetTask handles GET /tasks/{taskID}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	rec, err := s.history.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("failed to retrieve task", "task_id", taskID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve task")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// handleFindByFingerprint handles GET /fingerprints/{fingerprint}/tasks.
func (s *Server) handleFindByFingerprint(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")

	tasks, err := s.history.FindByFingerprint(r.Context(), fp)
	if err != nil {
		s.logger.Error("failed to search fingerprint", "fingerprint", fp, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to search fingerprint")
		return
	}
	s.writeTasks(w, tasks)
}

func (s *Server) writeTasks(w http.ResponseWriter, tasks []*journal.TaskRecord) {
	if tasks == nil {
		tasks = []*journal.TaskRecord{}
	}
	respondJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks})
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
