package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/shapeserial/pkg/buildinfo"
	"github.com/matzehuels/shapeserial/pkg/format"
	"github.com/matzehuels/shapeserial/pkg/logging"
	"github.com/matzehuels/shapeserial/pkg/observability"
	"github.com/matzehuels/shapeserial/pkg/schema"
	"github.com/matzehuels/shapeserial/pkg/serial"
	"github.com/matzehuels/shapeserial/pkg/store"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 4 << 20

// Server is the HTTP service. Create it with [New].
type Server struct {
	store    store.Store
	schemas  *schema.Registry
	formats  *format.Registry
	logger   *log.Logger
	maxBody  int64
	maxDepth int
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option { return func(s *Server) { s.maxBody = n } }

// WithMaxDepth bounds the nesting of accepted documents.
func WithMaxDepth(n int) Option { return func(s *Server) { s.maxDepth = n } }

// WithRegistry uses r instead of schema.Default().
func WithRegistry(r *schema.Registry) Option { return func(s *Server) { s.schemas = r } }

// WithFormats uses r instead of format.Default().
func WithFormats(r *format.Registry) Option { return func(s *Server) { s.formats = r } }

// New creates a server backed by st.
func New(st store.Store, opts ...Option) *Server {
	s := &Server{
		store:   st,
		schemas: schema.Default(),
		formats: format.Default(),
		logger:  log.Default(),
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestContext)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/formats", s.listFormats)
		r.Post("/convert", s.convert)
		r.Put("/documents/*", s.putDocument)
		r.Get("/documents/*", s.getDocument)
		r.Delete("/documents/*", s.deleteDocument)
		r.Get("/documents", s.listDocuments)
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// ===== Middleware =====

type requestIDKey struct{}

// RequestID returns the id of the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestContext gives each request an id and a logger tagged with it.
// A client-supplied X-Request-ID is kept.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		w.Header().Set("Server", buildinfo.UserAgent())
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logging.WithLogger(ctx, s.logger.With("request", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)
		logging.FromContext(r.Context()).Info("request",
			"method", r.Method, "path", r.URL.Path, "status", status, "elapsed", elapsed)
	})
}

// serialOptions returns the options every client payload is decoded with.
func (s *Server) serialOptions(extra ...serial.Option) []serial.Option {
	opts := []serial.Option{
		serial.WithRegistry(s.schemas),
		serial.WithFormats(s.formats),
		serial.MaxDepth(s.maxDepth),
	}
	return append(opts, extra...)
}
