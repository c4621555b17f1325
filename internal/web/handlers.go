package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"songfetch/internal/metadata"
	"songfetch/internal/pipeline"
	"songfetch/internal/tag"
	"songfetch/pkg/utils"
)

type ProcessRequest struct {
	Query    string           `json:"query"`
	Lyrics   string           `json:"lyrics,omitempty"`
	Metadata *MetadataPayload `json:"metadata,omitempty"`
}

// MetadataPayload is caller-supplied metadata used as a fallback when
// provider lookup fails.
type MetadataPayload struct {
	Title       string   `json:"title,omitempty"`
	Artist      string   `json:"artist,omitempty"`
	Album       string   `json:"album,omitempty"`
	Year        string   `json:"year,omitempty"`
	TrackNumber int      `json:"track_number,omitempty"`
	TotalTracks int      `json:"total_tracks,omitempty"`
	Genre       string   `json:"genre,omitempty"`
	Composers   []string `json:"composers,omitempty"`
	Popularity  int      `json:"popularity,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
}

func (m *MetadataPayload) toRecord() *metadata.Record {
	if m == nil {
		return nil
	}
	rec := &metadata.Record{
		Title:       m.Title,
		Artist:      m.Artist,
		Album:       m.Album,
		Year:        m.Year,
		TrackNumber: m.TrackNumber,
		TotalTracks: m.TotalTracks,
		Composers:   m.Composers,
		Popularity:  m.Popularity,
		CoverURL:    m.CoverURL,
	}
	if m.Genre != "" {
		rec.Genres = []string{m.Genre}
	}
	return rec
}

type ResolveResponse struct {
	AudioURL string `json:"audio_url"`
	PageURL  string `json:"page_url"`
	Title    string `json:"title"`
	Outcome  string `json:"outcome"`
}

type JobResponse struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Status      JobStatus `json:"status"`
	Progress    int64     `json:"progress"`
	Total       int64     `json:"total"`
	Error       string    `json:"error,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	CreatedAt   string    `json:"created_at"`
	StartedAt   *string   `json:"started_at,omitempty"`
	CompletedAt *string   `json:"completed_at,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	result := s.proc.Resolve(r.Context(), query)

	outcome := "not_found"
	switch {
	case result.AudioURL != "":
		outcome = "found"
	case result.PageURL != "":
		outcome = "partial"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ResolveResponse{
		AudioURL: result.AudioURL,
		PageURL:  result.PageURL,
		Title:    result.Title,
		Outcome:  outcome,
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	job := s.jobMgr.CreateJob(req.Query)
	s.logger.Info("Created job %s for query: %s", job.ID, req.Query)

	go s.processJob(job, req)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.jobToResponse(job))
}

// handleProcessSong is the synchronous variant: it resolves, downloads
// and tags in memory and streams the MP3 straight back.
func (s *Server) handleProcessSong(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	result, err := s.proc.ProcessBuffer(r.Context(), pipeline.Request{
		Query:  query,
		Lyrics: r.URL.Query().Get("lyrics"),
	})
	if err != nil {
		s.writeProcessError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Write(result.Data)
}

func (s *Server) writeProcessError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrNotFound), errors.Is(err, pipeline.ErrPartialResolution):
		status = http.StatusNotFound
	case errors.Is(err, pipeline.ErrFetchFailed), errors.Is(err, tag.ErrInvalidContainer):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs := s.jobMgr.ListJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = s.jobToResponse(job)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

func (s *Server) handleJobAction(w http.ResponseWriter, r *http.Request) {
	// Extract job ID from path: /api/jobs/{id}, /api/jobs/{id}/cancel
	// or /api/jobs/{id}/download
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	job, err := s.jobMgr.GetJob(parts[0])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// GET /api/jobs/{id}
	if r.Method == http.MethodGet && len(parts) == 1 {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.jobToResponse(job))
		return
	}

	// POST /api/jobs/{id}/cancel
	if r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "cancel" {
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			if j.Cancel != nil {
				j.Cancel()
			}
			j.Status = StatusCancelled
		})

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
		return
	}

	// GET /api/jobs/{id}/download
	if r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "download" {
		if job.Status != StatusCompleted || job.ResultPath == "" {
			http.Error(w, "job has no result", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.Filename))
		http.ServeFile(w, r, job.ResultPath)
		return
	}

	http.Error(w, "Invalid request", http.StatusBadRequest)
}

func (s *Server) processJob(job *Job, req ProcessRequest) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Cancel = cancel
		j.Status = StatusRunning
	})

	s.logger.Info("Starting job %s", job.ID)

	workDir, err := utils.CreateTempDir()
	if err != nil {
		s.failJob(job.ID, err)
		return
	}
	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.WorkDir = workDir
	})

	result, err := s.proc.ProcessFile(ctx, pipeline.Request{
		Query:  req.Query,
		Lyrics: req.Lyrics,
		Record: req.Metadata.toRecord(),
		Progress: func(written, total int64) {
			s.jobMgr.UpdateJob(job.ID, func(j *Job) {
				j.Progress = written
				j.Total = total
			})
		},
	}, workDir)
	if err != nil {
		utils.Cleanup(workDir)
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			j.WorkDir = ""
		})
		s.failJob(job.ID, err)
		return
	}

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.ResultPath = result.Path
		j.Filename = result.Filename
	})

	s.logger.Info("Job %s completed: %s", job.ID, result.Filename)
}

func (s *Server) failJob(id string, err error) {
	s.logger.Error("Job %s failed: %v", id, err)
	s.jobMgr.UpdateJob(id, func(j *Job) {
		if j.Status != StatusCancelled {
			j.Status = StatusFailed
		}
		j.Error = err.Error()
	})
}

func (s *Server) jobToResponse(job *Job) *JobResponse {
	resp := &JobResponse{
		ID:        job.ID,
		Query:     job.Query,
		Status:    job.Status,
		Progress:  job.Progress,
		Total:     job.Total,
		Error:     job.Error,
		Filename:  job.Filename,
		CreatedAt: job.CreatedAt.Format("2006-01-02 15:04:05"),
	}

	if job.StartedAt != nil {
		started := job.StartedAt.Format("2006-01-02 15:04:05")
		resp.StartedAt = &started
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &completed
	}

	return resp
}
