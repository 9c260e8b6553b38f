package web

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	jobservice "github.com/pwa-builder/PWABuilder-sub006/internal/service/job_service"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/telemetry"
	"github.com/pwa-builder/PWABuilder-sub006/internal/storage"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	limiter "github.com/pwa-builder/PWABuilder-sub006/internal/web/middleware"
	"github.com/pwa-builder/PWABuilder-sub006/model"
)

// Packager builds a zip synchronously for the deprecated generate routes.
type Packager interface {
	CreateZip(ctx context.Context, opts model.PackagingOptions, progress func(string)) (string, error)
}

type Server struct {
	router    chi.Router
	jobs      *jobservice.JobService
	storage   storage.Storage
	telemetry telemetry.Telemetry
	packager  Packager
	limiter   *limiter.Limiter

	fetcher    *http.Client
	checkFetch func(*url.URL) (int, string)
}

type Option func(*Server)

// WithPackager enables the synchronous generate routes. Without one they
// answer 503.
func WithPackager(p Packager) Option {
	return func(s *Server) { s.packager = p }
}

func WithLimiter(l *limiter.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

func WithServerConfig(cfg *config.ServerConfig) Option {
	return func(s *Server) { s.limiter = limiter.NewLimiter(cfg.SYNC_QUEUE_SIZE, cfg.SYNC_MAX_INFLIGHT) }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.fetcher = c }
}

func NewServer(jobs *jobservice.JobService, st storage.Storage, t telemetry.Telemetry, opts ...Option) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		jobs:       jobs,
		storage:    st,
		telemetry:  t,
		checkFetch: checkFetchURL,
	}
	for _, o := range opts {
		o(s)
	}
	if s.telemetry == nil {
		s.telemetry = telemetry.Noop{}
	}
	if s.limiter == nil {
		s.limiter = limiter.NewLimiter(10, 2)
	}
	if s.fetcher == nil {
		s.fetcher = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	s.routes()
	return s
}

// Router exposes the traced handler for the binaries.
func (s *Server) Router() http.Handler {
	return otelhttp.NewHandler(s.router, "cloudapk")
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", s.handlePing)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Post("/enqueuePackageJob", s.handleEnqueue)
		r.Get("/getPackageJob", s.handleGetJob)
		r.Get("/downloadPackageZip", s.handleDownload)
		r.Get("/fetch", s.handleFetch)
	})

	// builds run for minutes, so these are bounded by the limiter only
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Limit)
		r.Post("/generateAppPackage", s.handleGenerate)
		r.Post("/generateApkZip", s.handleGenerate)
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readOptions decodes and validates the request body and stamps the
// analytics headers onto the options. On failure the response is written
// and a failure event is emitted.
func (s *Server) readOptions(w http.ResponseWriter, r *http.Request) (*model.PackagingOptions, bool) {
	var opts *model.PackagingOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		opts = nil
	}

	if err := packaging.Validate(opts); err != nil {
		info := model.AnalyticsInfo{}
		if opts != nil {
			info = telemetry.InfoFromOptions(*opts)
		}
		s.telemetry.Track(r.Context(), analytics(r, info), err.Error(), false)
		http.Error(w, html.EscapeString(err.Error()), http.StatusInternalServerError)
		return nil, false
	}

	info := analytics(r, telemetry.InfoFromOptions(*opts))
	opts.AnalyticsInfo = &info
	return opts, true
}

func analytics(r *http.Request, info model.AnalyticsInfo) model.AnalyticsInfo {
	info.PlatformID = r.Header.Get("platform-identifier")
	info.PlatformIDVersion = r.Header.Get("platform-identifier-version")
	info.CorrelationID = r.Header.Get("correlation-id")
	info.Referrer = r.URL.Query().Get("ref")
	return info
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.readOptions(w, r)
	if !ok {
		return
	}

	id, err := s.jobs.Enqueue(r.Context(), *opts)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("host", opts.Host).Msg("failed to enqueue package job")
		http.Error(w, "Failed to enqueue package job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, id)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := jobIDParam(r)
	if id == "" {
		http.Error(w, "You must specify a jobId query parameter", http.StatusBadRequest)
		return
	}

	job, ok := s.lookup(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job.Redacted())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := jobIDParam(r)
	if id == "" {
		http.Error(w, "You must specify a jobId query parameter", http.StatusBadRequest)
		return
	}

	job, ok := s.lookup(w, r, id)
	if !ok {
		return
	}
	if job.Status == model.JobFailed {
		http.Error(w, "Job failed: "+html.EscapeString(strings.Join(job.Errors, ", ")), http.StatusBadRequest)
		return
	}
	if job.Status != model.JobCompleted || job.UploadedBlobFileName == "" {
		http.Error(w, "Job is not ready for download. Current status: "+string(job.Status), http.StatusBadRequest)
		return
	}

	blob, err := s.storage.Download(r.Context(), job.UploadedBlobFileName)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("id", id).Msg("unable to open package blob")
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Package zip no longer available for job "+html.EscapeString(id), http.StatusNotFound)
			return
		}
		http.Error(w, "Unable to download package zip", http.StatusInternalServerError)
		return
	}
	defer blob.Close()

	sendZipHeaders(w, hostOf(job.PwaURL, job.PackageOptions.Host))
	if _, err := io.Copy(w, blob); err != nil {
		log := logger.FromContext(r.Context())
		log.Warn().Err(err).Str("id", id).Msg("package download interrupted")
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.packager == nil {
		http.Error(w, "Synchronous packaging is not available on this instance", http.StatusServiceUnavailable)
		return
	}
	opts, ok := s.readOptions(w, r)
	if !ok {
		return
	}

	// a client disconnect does not abort a started build
	ctx := context.WithoutCancel(r.Context())
	zipPath, err := s.packager.CreateZip(ctx, *opts, nil)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("host", opts.Host).Msg("synchronous packaging failed")
		s.telemetry.Track(ctx, *opts.AnalyticsInfo, err.Error(), false)
		http.Error(w, "Error generating app package: \r\n"+html.EscapeString(err.Error()), http.StatusInternalServerError)
		return
	}
	s.telemetry.Track(ctx, *opts.AnalyticsInfo, "", true)

	f, err := os.Open(zipPath)
	if err != nil {
		http.Error(w, "Error generating app package: \r\n"+html.EscapeString(err.Error()), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	sendZipHeaders(w, hostOf(opts.PwaURL, opts.Host))
	io.Copy(w, f)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, id string) (*model.Job, bool) {
	job, err := s.jobs.GetJob(r.Context(), id)
	if errors.Is(err, jobservice.ErrJobNotFound) {
		http.Error(w, "No job found with ID "+html.EscapeString(id), http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("id", id).Msg("unable to load job")
		http.Error(w, "Unable to load job "+html.EscapeString(id), http.StatusInternalServerError)
		return nil, false
	}
	return job, true
}

// jobIDParam accepts both id and jobId.
func jobIDParam(r *http.Request) string {
	q := r.URL.Query()
	if id := q.Get("id"); id != "" {
		return id
	}
	return q.Get("jobId")
}

func sendZipHeaders(w http.ResponseWriter, host string) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+util.DownloadFileName(host)+`"`)
	w.WriteHeader(http.StatusOK)
}

func hostOf(pwaURL, fallback string) string {
	if u, err := url.Parse(pwaURL); err == nil && u.Host != "" {
		return u.Host
	}
	if u, err := url.Parse(fallback); err == nil && u.Host != "" {
		return u.Host
	}
	return strings.TrimSuffix(strings.TrimPrefix(fallback, "https://"), "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
