package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"healthrec/internal/blobstore"
	"healthrec/internal/store"
)

const (
	allowRemoteEnvKey     = "HEALTHREC_ALLOW_REMOTE"
	readHeaderTimeout     = 5 * time.Second
	readTimeout           = 60 * time.Second
	writeTimeout          = 60 * time.Second
	idleTimeout           = 60 * time.Second
	shutdownTimeout       = 10 * time.Second
	sweepConcurrencyLimit = 1
)

// UploadOptions bounds multipart registration requests.
type UploadOptions struct {
	MaxBytes        int64
	MultipartMemory int64
	Extension       string
}

// DefaultUploadOptions returns the limits used when none are configured.
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		MaxBytes:        100 << 20, // 100 MiB
		MultipartMemory: 8 << 20,   // 8 MiB
		Extension:       ".csv",
	}
}

// Server wraps HTTP handlers for the healthrec API.
type Server struct {
	addr         string
	dbPath       string
	dataDir      string
	records      *RecordService
	metrics      *Metrics
	logger       *slog.Logger
	uploads      UploadOptions
	sweepLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, records store.RecordStore, blobs blobstore.BlobStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	metrics := NewMetrics()
	service := NewRecordService(records, blobs, logger)
	service.useMetrics(metrics)

	return &Server{
		addr:         addr,
		records:      service,
		metrics:      metrics,
		logger:       logger.With("component", "server"),
		uploads:      DefaultUploadOptions(),
		sweepLimiter: make(chan struct{}, sweepConcurrencyLimit),
	}
}

// ConfigureUploads overrides upload limits; zero fields keep their defaults.
func (s *Server) ConfigureUploads(opts UploadOptions) {
	defaults := DefaultUploadOptions()
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaults.MaxBytes
	}
	if opts.MultipartMemory <= 0 {
		opts.MultipartMemory = defaults.MultipartMemory
	}
	if opts.MultipartMemory > opts.MaxBytes {
		opts.MultipartMemory = opts.MaxBytes
	}
	opts.Extension = strings.TrimSpace(opts.Extension)
	if opts.Extension == "" {
		opts.Extension = defaults.Extension
	}
	if !strings.HasPrefix(opts.Extension, ".") {
		opts.Extension = "." + opts.Extension
	}
	s.uploads = opts
}

// ConfigureSweep sets the orphan grace period used by the sweep endpoint.
func (s *Server) ConfigureSweep(grace time.Duration) {
	s.records.ConfigureSweep(grace)
}

// SetStorePaths records the database and data paths reported by /v1/info.
func (s *Server) SetStorePaths(dbPath, dataDir string) {
	s.dbPath = dbPath
	s.dataDir = dataDir
}

// Service exposes the record service for in-process callers.
func (s *Server) Service() *RecordService {
	return s.records
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}
