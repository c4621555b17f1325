package web

import (
	"context"
	"net/http"

	"songfetch/internal/config"
	"songfetch/internal/logger"
	"songfetch/internal/pipeline"
	"songfetch/internal/resolver"
)

// processor is the slice of the pipeline the web layer drives.
type processor interface {
	Resolve(ctx context.Context, query string) resolver.Result
	ProcessBuffer(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	ProcessFile(ctx context.Context, req pipeline.Request, workDir string) (*pipeline.Result, error)
}

type Server struct {
	ctx    context.Context
	jobMgr *JobManager
	config config.Config
	logger *logger.Logger
	proc   processor
}

func NewServer(ctx context.Context, jobMgr *JobManager, cfg config.Config, log *logger.Logger, proc processor) *Server {
	return &Server{
		ctx:    ctx,
		jobMgr: jobMgr,
		config: cfg,
		logger: log,
		proc:   proc,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/", http.FileServer(http.Dir("web/static")))

	// API endpoints
	mux.HandleFunc("/api/resolve", s.handleResolve)
	mux.HandleFunc("/api/process", s.handleProcess)
	mux.HandleFunc("/api/process-song", s.handleProcessSong)
	mux.HandleFunc("/api/jobs", s.handleListJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobAction)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
