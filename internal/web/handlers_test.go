package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"songfetch/internal/config"
	"songfetch/internal/logger"
	"songfetch/internal/pipeline"
	"songfetch/internal/resolver"
)

type stubProcessor struct {
	resolveResult resolver.Result
	bufferResult  *pipeline.Result
	bufferErr     error
	fileErr       error
	lastRequest   pipeline.Request
}

func (s *stubProcessor) Resolve(ctx context.Context, query string) resolver.Result {
	return s.resolveResult
}

func (s *stubProcessor) ProcessBuffer(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.lastRequest = req
	return s.bufferResult, s.bufferErr
}

func (s *stubProcessor) ProcessFile(ctx context.Context, req pipeline.Request, workDir string) (*pipeline.Result, error) {
	s.lastRequest = req
	if s.fileErr != nil {
		return nil, s.fileErr
	}
	path := filepath.Join(workDir, "audio.mp3")
	if err := os.WriteFile(path, []byte("tagged-audio"), 0644); err != nil {
		return nil, err
	}
	return &pipeline.Result{Path: path, Filename: "Song - Artist.mp3"}, nil
}

func newTestServer(t *testing.T, proc processor) (*httptest.Server, *JobManager) {
	t.Helper()
	jm := NewJobManager()
	s := NewServer(context.Background(), jm, config.DefaultConfig(), logger.New(false), proc)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv, jm
}

func waitForStatus(t *testing.T, jm *JobManager, id string, want JobStatus) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jm.GetJob(id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return nil
}

func TestHandleResolve(t *testing.T) {
	tests := []struct {
		name    string
		result  resolver.Result
		outcome string
	}{
		{
			name:    "found",
			result:  resolver.Result{AudioURL: "https://cdn.example.com/a.mp3", PageURL: "https://example.com/p", Title: "Song"},
			outcome: "found",
		},
		{
			name:    "partial",
			result:  resolver.Result{PageURL: "https://example.com/p"},
			outcome: "partial",
		},
		{
			name:    "not found",
			result:  resolver.Result{},
			outcome: "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubProcessor{resolveResult: tt.result})

			resp, err := http.Get(srv.URL + "/api/resolve?query=some+song")
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			var body ResolveResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Outcome != tt.outcome {
				t.Errorf("outcome = %q, want %q", body.Outcome, tt.outcome)
			}
			if body.AudioURL != tt.result.AudioURL {
				t.Errorf("audio_url = %q, want %q", body.AudioURL, tt.result.AudioURL)
			}
		})
	}
}

func TestHandleResolveMissingQuery(t *testing.T) {
	srv, _ := newTestServer(t, &stubProcessor{})

	resp, err := http.Get(srv.URL + "/api/resolve")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleProcessAndDownload(t *testing.T) {
	proc := &stubProcessor{}
	srv, jm := newTestServer(t, proc)

	body := `{"query": "dreams fleetwood mac", "lyrics": "la la", "metadata": {"title": "Dreams", "artist": "Fleetwood Mac"}}`
	resp, err := http.Post(srv.URL+"/api/process", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var jobResp JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&jobResp); err != nil {
		t.Fatalf("failed to decode job response: %v", err)
	}
	if jobResp.Query != "dreams fleetwood mac" {
		t.Errorf("query = %q", jobResp.Query)
	}

	job := waitForStatus(t, jm, jobResp.ID, StatusCompleted)
	if job.Filename != "Song - Artist.mp3" {
		t.Errorf("filename = %q", job.Filename)
	}
	if proc.lastRequest.Lyrics != "la la" {
		t.Errorf("lyrics not passed through, got %q", proc.lastRequest.Lyrics)
	}
	if proc.lastRequest.Record == nil || proc.lastRequest.Record.Artist != "Fleetwood Mac" {
		t.Errorf("caller metadata not passed through: %+v", proc.lastRequest.Record)
	}

	dlResp, err := http.Get(fmt.Sprintf("%s/api/jobs/%s/download", srv.URL, jobResp.ID))
	if err != nil {
		t.Fatalf("download request failed: %v", err)
	}
	defer dlResp.Body.Close()

	if got := dlResp.Header.Get("Content-Disposition"); !strings.Contains(got, "Song - Artist.mp3") {
		t.Errorf("Content-Disposition = %q", got)
	}
	data, _ := io.ReadAll(dlResp.Body)
	if !bytes.Equal(data, []byte("tagged-audio")) {
		t.Errorf("downloaded body = %q", data)
	}

	// Work dir cleanup on retention
	jm.mu.Lock()
	past := time.Now().Add(-2 * time.Hour)
	jm.jobs[jobResp.ID].CompletedAt = &past
	jm.mu.Unlock()
	jm.cleanup()
	if _, err := os.Stat(job.WorkDir); !os.IsNotExist(err) {
		t.Error("work dir should be removed after retention cleanup")
	}
}

func TestHandleProcessFailure(t *testing.T) {
	proc := &stubProcessor{fileErr: pipeline.ErrNotFound}
	srv, jm := newTestServer(t, proc)

	resp, err := http.Post(srv.URL+"/api/process", "application/json", strings.NewReader(`{"query": "nope"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var jobResp JobResponse
	json.NewDecoder(resp.Body).Decode(&jobResp)

	job := waitForStatus(t, jm, jobResp.ID, StatusFailed)
	if job.Error == "" {
		t.Error("failed job should carry an error message")
	}
	if job.WorkDir != "" {
		t.Error("failed job should not keep a work dir")
	}
}

func TestHandleProcessMissingQuery(t *testing.T) {
	srv, _ := newTestServer(t, &stubProcessor{})

	resp, err := http.Post(srv.URL+"/api/process", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleProcessSong(t *testing.T) {
	proc := &stubProcessor{bufferResult: &pipeline.Result{
		Data:     []byte("ID3tagged-bytes"),
		Filename: "Dreams - Fleetwood Mac.mp3",
	}}
	srv, _ := newTestServer(t, proc)

	resp, err := http.Get(srv.URL + "/api/process-song?query=dreams&lyrics=la+la")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "Dreams - Fleetwood Mac.mp3") {
		t.Errorf("Content-Disposition = %q", got)
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(data, proc.bufferResult.Data) {
		t.Error("body does not match tagged bytes")
	}
	if proc.lastRequest.Lyrics != "la la" {
		t.Errorf("lyrics = %q", proc.lastRequest.Lyrics)
	}
}

func TestHandleProcessSongErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", pipeline.ErrNotFound, http.StatusNotFound},
		{"partial", pipeline.ErrPartialResolution, http.StatusNotFound},
		{"fetch failed", pipeline.ErrFetchFailed, http.StatusBadGateway},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubProcessor{bufferErr: tt.err})

			resp, err := http.Get(srv.URL + "/api/process-song?query=x")
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestHandleJobActionNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubProcessor{})

	resp, err := http.Get(srv.URL + "/api/jobs/job_missing")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleDownloadNotReady(t *testing.T) {
	srv, jm := newTestServer(t, &stubProcessor{})
	job := jm.CreateJob("pending song")

	resp, err := http.Get(fmt.Sprintf("%s/api/jobs/%s/download", srv.URL, job.ID))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestHandleCancel(t *testing.T) {
	srv, jm := newTestServer(t, &stubProcessor{})
	job := jm.CreateJob("cancel me")

	resp, err := http.Post(fmt.Sprintf("%s/api/jobs/%s/cancel", srv.URL, job.ID), "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	got, _ := jm.GetJob(job.ID)
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
}
