package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/csstrim/internal/config"
	"github.com/nao1215/csstrim/internal/metrics"
	"github.com/nao1215/csstrim/internal/model"
)

// Banner is the body of GET /.
const Banner = "Well, yes, but actually no."

const (
	// maxRequestBody bounds the POST body.
	maxRequestBody = 1 << 20

	// readHeaderTimeout bounds how long a client may take to send headers.
	readHeaderTimeout = 10 * time.Second

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 30 * time.Second
)

// Runner executes one run per request. pipeline.Runner implements it.
type Runner interface {
	Run(ctx context.Context, target string) (*model.Result, error)
}

// purgeRequest is the body of POST /.
type purgeRequest struct {
	Target string `json:"target"`
}

// Server is the HTTP boundary in front of the Runner.
type Server struct {
	runner   Runner
	cfg      *config.Config
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRecorder sets the metrics recorder served on /metrics and fed by
// every request.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(s *Server) {
		s.recorder = rec
	}
}

// New creates a Server. A nil cfg means config.NewConfig().
func New(runner Runner, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	s := &Server{
		runner: runner,
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleBanner)
	mux.HandleFunc("POST /{$}", s.handlePurge)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.recorder != nil {
		mux.Handle("GET /metrics", s.recorder.Handler())
	}

	var h http.Handler = mux
	if s.recorder != nil {
		h = s.recorder.Middleware(h)
	}
	return logging(s.logger, h)
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully. In-flight runs are allowed to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening",
			"addr", ln.Addr().String(),
			"auth", s.cfg.AuthEnabled(),
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(Banner))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePurge authenticates, runs the pipeline and answers exactly once.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if err := s.authenticate(r); err != nil {
		s.writeError(w, err)
		return
	}

	target, err := readTarget(w, r)
	if err != nil {
		if errors.Is(err, errMissingTarget) {
			s.writeError(w, err)
			return
		}
		http.Error(w, "Invalid request body.", http.StatusBadRequest)
		return
	}

	result, err := s.runner.Run(r.Context(), target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// authenticate checks basic auth when credentials are configured.
func (s *Server) authenticate(r *http.Request) error {
	if !s.cfg.AuthEnabled() {
		return nil
	}
	username, password, ok := r.BasicAuth()
	if !ok {
		return ErrUnauthorized
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	if !userOK || !passOK {
		return ErrUnauthorized
	}
	return nil
}

// readTarget reads the target from a JSON or form encoded body.
func readTarget(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var target string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty type falls through to form parsing
	if mediaType == "application/json" {
		var req purgeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("invalid json body: %w", err)
		}
		target = req.Target
	} else {
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("invalid form body: %w", err)
		}
		target = r.PostForm.Get("target")
	}

	if target == "" {
		return "", errMissingTarget
	}
	return target, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="csstrim"`)
	}
	http.Error(w, message, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
