package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	socketWriteWait = 10 * time.Second
	socketPingEvery = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from the same process; origin checks add nothing.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket streams job state to the client: the current state on
// connect, then every update until the job reaches a terminal status.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		http.Error(w, "job_id query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates := s.jobMgr.Subscribe(jobID)
	defer s.jobMgr.Unsubscribe(jobID, updates)

	if job, err := s.jobMgr.GetJob(jobID); err == nil {
		if err := s.writeJob(conn, job); err != nil {
			return
		}
		if isTerminal(job.Status) {
			return
		}
	}

	ticker := time.NewTicker(socketPingEvery)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeJob(conn, job); err != nil {
				s.logger.Debug("WebSocket write failed: %v", err)
				return
			}
			if isTerminal(job.Status) {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeJob(conn *websocket.Conn, job *Job) error {
	data, err := json.Marshal(s.jobToResponse(job))
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func isTerminal(status JobStatus) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
