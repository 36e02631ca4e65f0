package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/nightlifeflyers/flyerstudio/internal/backdrop"
	"github.com/nightlifeflyers/flyerstudio/internal/cutout"
	"github.com/nightlifeflyers/flyerstudio/internal/mood"
	"github.com/nightlifeflyers/flyerstudio/internal/raster"
	"github.com/nightlifeflyers/flyerstudio/internal/store"
)

// DefaultMaxBodyBytes bounds JSON request bodies. Sources travel as data URIs
// so the limit is generous.
const DefaultMaxBodyBytes = 48 << 20

// ImageLoader resolves source references (data URIs, URLs, paths).
type ImageLoader interface {
	Load(ctx context.Context, src string) (*raster.Buffer, error)
}

// MoodExtractor derives style signals from reference images.
type MoodExtractor interface {
	Extract(ctx context.Context, src string) *mood.Signal
}

// BackdropGenerator produces AI backgrounds.
type BackdropGenerator interface {
	Generate(ctx context.Context, req backdrop.Request) (*backdrop.Image, error)
}

// Options wires the server to its collaborators. Store and Loader are
// required; a nil Mood gets an uncached extractor over Loader and a nil
// Backdrops disables /api/v1/backdrops.
type Options struct {
	Store        store.Store
	Loader       ImageLoader
	Mood         MoodExtractor
	Backdrops    BackdropGenerator
	TraceDir     string
	MaxBodyBytes int64
}

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	runner     *jobRunner
	opts       Options
	addr       string
	server     *http.Server

	// jobCtx parents every job worker so Shutdown can stop them.
	jobCtx   context.Context
	stopJobs context.CancelFunc
}

// NewServer creates a new HTTP server and restores finished jobs from the store.
func NewServer(addr string, opts Options) *Server {
	if opts.Mood == nil && opts.Loader != nil {
		opts.Mood = mood.NewExtractor(opts.Loader, nil)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	jm := NewJobManager()
	jobCtx, stop := context.WithCancel(context.Background())
	s := &Server{
		jobManager: jm,
		runner: &jobRunner{
			jm:       jm,
			loader:   opts.Loader,
			store:    opts.Store,
			traceDir: opts.TraceDir,
		},
		opts:     opts,
		addr:     addr,
		jobCtx:   jobCtx,
		stopJobs: stop,
	}
	s.restoreJobs()
	return s
}

func (s *Server) restoreJobs() {
	if s.opts.Store == nil {
		return
	}
	infos, err := s.opts.Store.ListResults()
	if err != nil {
		slog.Warn("Failed to list stored results", "error", err)
		return
	}
	for _, info := range infos {
		result, err := s.opts.Store.LoadResult(info.JobID)
		if err != nil {
			slog.Warn("Skipping stored result", "job_id", info.JobID, "error", err)
			continue
		}
		s.jobManager.Restore(result)
	}
	if len(infos) > 0 {
		slog.Info("Restored finished jobs", "count", len(infos))
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)

	mux.HandleFunc("/api/v1/cleanup", s.handleCleanup)
	mux.HandleFunc("/api/v1/chromakey", s.handleChromaKey)
	mux.HandleFunc("/api/v1/mood", s.handleMood)
	mux.HandleFunc("/api/v1/blend", s.handleBlend)
	mux.HandleFunc("/api/v1/backdrops", s.handleBackdrops)

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)

	mux.HandleFunc("/api/v1/brandkits", s.handleBrandKits)
	mux.HandleFunc("/api/v1/brandkits/", s.handleBrandKitWithName)

	handler := s.loggingMiddleware(s.corsMiddleware(mux))
	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(handler)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown cancels running jobs and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))
	s.stopJobs()
	s.jobManager.CancelAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	if len(parts) == 1 && r.Method == http.MethodDelete {
		s.handleDeleteJob(w, r, jobID)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == store.ImageArtifact:
		s.handleGetResultImage(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	config := store.JobConfig{Params: cutout.DefaultParams()}
	if !s.decodeJSON(w, r, &config) {
		return
	}
	if strings.TrimSpace(config.Source) == "" {
		http.Error(w, "source is required", http.StatusBadRequest)
		return
	}
	config.Params = config.Params.Clamp()

	job := s.jobManager.CreateJob(config)

	ctx, cancel := context.WithCancel(s.jobCtx)
	s.jobManager.setCancel(job.ID, cancel)
	go s.runner.runJob(ctx, job.ID)

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// jobStatus is the status view of a job.
type jobStatus struct {
	Job
	Elapsed  float64 `json:"elapsed"`
	Progress float64 `json:"progress"`
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	progress := 1.0
	if n := len(job.Stages); n > 0 && job.State != StateCompleted {
		progress = float64(job.Completed) / float64(n)
	}

	writeJSON(w, http.StatusOK, jobStatus{Job: job, Elapsed: elapsed.Seconds(), Progress: progress})
}

// handleGetResultImage handles GET /api/v1/jobs/:id/result.png
func (s *Server) handleGetResultImage(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if job.State != StateCompleted {
		http.Error(w, "No result yet", http.StatusNotFound)
		return
	}

	path, err := s.opts.Store.ArtifactPath(jobID, store.ImageArtifact)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// handleDeleteJob handles DELETE /api/v1/jobs/:id. Running jobs are
// cancelled first.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if !s.jobManager.RemoveJob(jobID) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err := s.opts.Store.DeleteResult(jobID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, err)
		return
	}
	slog.Info("Job deleted", "job_id", jobID)
	w.WriteHeader(http.StatusNoContent)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
