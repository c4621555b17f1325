package web

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCleanup(t *testing.T) {
	jm := NewJobManager()

	// Create an old completed job (2 hours ago)
	old := jm.CreateJob("old song")
	jm.UpdateJob(old.ID, func(j *Job) {
		j.Status = StatusCompleted
	})
	// Backdate CompletedAt
	jm.mu.Lock()
	past := time.Now().Add(-2 * time.Hour)
	jm.jobs[old.ID].CompletedAt = &past
	jm.mu.Unlock()

	// Create a recent completed job (just now)
	recent := jm.CreateJob("recent song")
	jm.UpdateJob(recent.ID, func(j *Job) {
		j.Status = StatusCompleted
	})

	// Create a running job (should never be cleaned)
	running := jm.CreateJob("running song")
	jm.UpdateJob(running.ID, func(j *Job) {
		j.Status = StatusRunning
	})

	jm.cleanup()

	if _, err := jm.GetJob(old.ID); err == nil {
		t.Error("old completed job should have been cleaned up")
	}
	if _, err := jm.GetJob(recent.ID); err != nil {
		t.Error("recent completed job should NOT have been cleaned up")
	}
	if _, err := jm.GetJob(running.ID); err != nil {
		t.Error("running job should NOT have been cleaned up")
	}
}

func TestCleanupRemovesWorkDir(t *testing.T) {
	jm := NewJobManager()

	workDir := filepath.Join(os.TempDir(), "songfetch-jobtest")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		t.Fatalf("failed to create work dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(workDir) })

	job := jm.CreateJob("expired song")
	jm.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.WorkDir = workDir
	})
	jm.mu.Lock()
	past := time.Now().Add(-2 * time.Hour)
	jm.jobs[job.ID].CompletedAt = &past
	jm.mu.Unlock()

	jm.cleanup()

	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Error("expired job's work dir should have been removed")
	}
}

func TestCreateJobUniqueIDs(t *testing.T) {
	jm := NewJobManager()

	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		job := jm.CreateJob("some song")
		if ids[job.ID] {
			t.Fatalf("duplicate job ID: %s", job.ID)
		}
		ids[job.ID] = true
	}
}

func TestJobIDFormat(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob("some song")
	if !strings.HasPrefix(job.ID, "job_") {
		t.Errorf("job ID should start with 'job_', got %q", job.ID)
	}
}

func TestUpdateJobTimestamps(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("some song")

	// Pending → Running should set StartedAt
	jm.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusRunning
	})
	j, _ := jm.GetJob(job.ID)
	if j.StartedAt == nil {
		t.Error("StartedAt should be set when status changes to running")
	}

	// Running → Completed should set CompletedAt
	jm.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusCompleted
	})
	j, _ = jm.GetJob(job.ID)
	if j.CompletedAt == nil {
		t.Error("CompletedAt should be set when status changes to completed")
	}
}

func TestUpdateJobNotFound(t *testing.T) {
	jm := NewJobManager()
	err := jm.UpdateJob("nonexistent", func(j *Job) {})
	if err == nil {
		t.Error("UpdateJob should return error for nonexistent job")
	}
}

// GetJob hands out copies so handlers can read job fields without
// holding the manager's lock while the worker goroutine updates them.
func TestGetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("some song")

	before, err := jm.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}

	jm.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusRunning
		j.Progress = 512
	})

	if before.Status != StatusPending || before.Progress != 0 {
		t.Errorf("earlier snapshot changed: status=%s progress=%d", before.Status, before.Progress)
	}

	before.Status = StatusFailed
	after, _ := jm.GetJob(job.ID)
	if after.Status != StatusRunning {
		t.Errorf("writing to a snapshot should not touch the stored job, got %s", after.Status)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("some song")

	ch := jm.Subscribe(job.ID)

	jm.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusRunning
	})

	select {
	case update := <-ch:
		if update.Status != StatusRunning {
			t.Errorf("expected status running, got %s", update.Status)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for update")
	}

	jm.Unsubscribe(job.ID, ch)
}
