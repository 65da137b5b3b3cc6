// Package server exposes a schema registry and its resolver over HTTP.
//
//	GET    /schema                          entity descriptions
//	GET    /schema/{namespace}/{entity}     one entity
//	GET    /records/{namespace}/{entity}    findMany: ?field=v&field__op=v&with=a,b.c
//	POST   /records/{namespace}/{entity}    insert one record (JSON object)
//	PATCH  /records/{namespace}/{entity}    update rows matching the query filters
//	DELETE /records/{namespace}/{entity}    delete rows matching the query filters
//	GET    /healthz                         store ping
//	GET    /metrics                         Prometheus exposition
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/koustreak/relschema/internal/logger"
	"github.com/koustreak/relschema/internal/metrics"
	"github.com/koustreak/relschema/internal/resolver"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds listener settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

type Server struct {
	cfg      Config
	resolver *resolver.Resolver
	log      *logger.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	pinger   Pinger
}

// Option configures a Server.
type Option func(*Server)

func WithConfig(cfg Config) Option { return func(s *Server) { s.cfg = cfg } }

func WithLogger(l *logger.Logger) Option { return func(s *Server) { s.log = l } }

// WithMetrics records HTTP metrics into m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithPinger makes /healthz ping p.
func WithPinger(p Pinger) Option { return func(s *Server) { s.pinger = p } }

// New returns a server for the registry behind r.
func New(r *resolver.Resolver, opts ...Option) *Server {
	s := &Server{cfg: DefaultConfig(), resolver: r, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}

	r.Route("/schema", func(r chi.Router) {
		r.Get("/", s.listEntities)
		r.Get("/{namespace}/{entity}", s.getEntity)
	})

	r.Route("/records/{namespace}/{entity}", func(r chi.Router) {
		r.Get("/", s.findMany)
		r.Post("/", s.insert)
		r.Patch("/", s.update)
		r.Delete("/", s.delete)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.log.InfoWith("http server listening", map[string]any{"addr": s.cfg.Addr})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// observe logs each request and feeds the HTTP metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		reqLog := s.log.With().Str("request_id", reqID).Logger()
		r = r.WithContext(reqLog.WithContext(r.Context()))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)

		reqLog.RequestEvent().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", elapsed).
			Msg("http request")
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		}
	})
}
