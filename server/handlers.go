package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/kiwatt/recorderd/errors"
	"github.com/kiwatt/recorderd/recorder"
)

// handleRoot serves GET /api/ as a plain-text liveness probe; the client
// uses it to flip its online/offline indicator
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Online"))
}

// handleStatusAll serves GET /api/recorder/status: every job with its logs
// truncated for the table view
func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	views := s.store.SnapshotAll()
	sort.Slice(views, func(i, j int) bool { return views[i].JobID < views[j].JobID })

	out := make([]recorder.JobView, 0, len(views))
	for _, v := range views {
		out = append(out, v.WithTruncatedLogs())
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStatusOne serves GET /api/recorder/status/{job_id} with full logs
func (s *Server) handleStatusOne(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	jobID, ok := jobIDFromPath(r.URL.Path, "/api/recorder/status/")
	if !ok {
		writeError(w, http.StatusBadRequest, "Job not found: job_id not valid")
		return
	}

	view, err := s.store.Snapshot(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found: job_id not valid")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleStart serves POST /api/recorder/start: validate the request,
// create the job, and start its first run immediately
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	s.logger.Infow("Start recorder request",
		"rec_type", req.RecType,
		"remote", r.RemoteAddr)

	plan, violations := recorder.Validate(req.Frequency, req.Zoom, recorder.RecordingType(req.RecType))
	if req.Duration == nil || *req.Duration <= 0 {
		violations = append(violations, "Duration must be greater than 0")
	}
	if req.Interval != nil && *req.Interval < 0 {
		violations = append(violations, "Interval cannot be negative")
	}
	if len(violations) > 0 {
		s.logger.Warnw("Start recorder rejected", "violations", violations)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Message:    strings.Join(violations, "; "),
			Violations: violations,
		})
		return
	}

	settings := recorder.RecorderSettings{
		RecType:   recorder.RecordingType(req.RecType),
		Frequency: int64(*req.Frequency),
		Duration:  *req.Duration,
	}
	if req.Zoom != nil {
		settings.Zoom = int(*req.Zoom)
	}
	if req.Interval != nil && *req.Interval > 0 {
		settings.Interval = *req.Interval
	}

	view, err := s.scheduler.CreateJob(settings, plan)
	if err != nil {
		if errors.Is(err, errors.ErrSlotsFull) {
			writeError(w, http.StatusBadRequest, "All recorder slots are full")
			return
		}
		s.logger.Errorw("Failed to create job", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	writeJSON(w, http.StatusOK, view.WithTruncatedLogs())
}

// handleStop serves POST /api/recorder/stop/{job_id}: terminate the current
// run but keep the job and, for recurring jobs, its schedule
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	jobID, ok := jobIDFromPath(r.URL.Path, "/api/recorder/stop/")
	if !ok {
		writeError(w, http.StatusBadRequest, "Job not found: job_id not valid")
		return
	}

	view, err := s.scheduler.StopJob(r.Context(), jobID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, "Job not found: job_id not valid")
			return
		}
		s.logger.Errorw("Failed to stop job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to stop job")
		return
	}

	writeJSON(w, http.StatusOK, view.WithTruncatedLogs())
}

// handleRemove serves DELETE /api/recorder/{job_id}: stop any live process
// and delete the record
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}

	jobID, ok := jobIDFromPath(r.URL.Path, "/api/recorder/")
	if !ok {
		writeError(w, http.StatusBadRequest, "Job not found: job_id not valid")
		return
	}

	if err := s.scheduler.RemoveJob(r.Context(), jobID); err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, "Job not found: job_id not valid")
			return
		}
		s.logger.Errorw("Failed to remove job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to remove job")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Recorder deleted successfully"})
}
