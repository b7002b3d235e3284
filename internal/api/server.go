package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/enginehost/internal/auth"
	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/events"
	"github.com/mattjoyce/enginehost/internal/host"
	"github.com/mattjoyce/enginehost/internal/storage"
	"github.com/mattjoyce/enginehost/internal/uci"
)

// Host defines the dispatcher operations the API drives.
type Host interface {
	SubmitCommand(text string, e command.Engine) (string, error)
	SubmitWeights(buf []byte, e command.Engine) (string, error)
	RequestShutdown() error
	HasEngine(e command.Engine) bool
	Stats() host.Stats
}

// Searcher runs request/response searches on top of the host.
type Searcher interface {
	GoFish(fen string, opts uci.SearchOpts) (<-chan []uci.PV, error)
	GoZero(fen string) (<-chan string, error)
	LoadWeights(buf []byte) error
}

// JournalReader lists recently dispatched commands.
type JournalReader interface {
	Recent(ctx context.Context, engine string, limit int) ([]storage.CommandRecord, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the single full-access bearer token.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens            []auth.TokenConfig
	MaxConcurrentSync int
	MaxSyncTimeout    time.Duration
	MaxWeightsBytes   int64
}

// Server represents the HTTP API server
type Server struct {
	config        Config
	host          Host
	searcher      Searcher
	journal       JournalReader
	events        *events.Hub
	logger        *slog.Logger
	server        *http.Server
	startedAt     time.Time
	syncSemaphore chan struct{}
}

// New creates a new API server instance. journal and hub may be nil.
func New(config Config, h Host, searcher Searcher, journal JournalReader, hub *events.Hub, logger *slog.Logger) *Server {
	if config.MaxConcurrentSync <= 0 {
		config.MaxConcurrentSync = 4
	}
	if config.MaxSyncTimeout <= 0 {
		config.MaxSyncTimeout = 60 * time.Second
	}
	if config.MaxWeightsBytes <= 0 {
		config.MaxWeightsBytes = 512 << 20
	}
	return &Server{
		config:        config,
		host:          h,
		searcher:      searcher,
		journal:       journal,
		events:        hub,
		logger:        logger,
		startedAt:     time.Now(),
		syncSemaphore: make(chan struct{}, config.MaxConcurrentSync),
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  time.Minute, // weights uploads can be large
		WriteTimeout: s.config.MaxSyncTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(s.requireScopes(auth.ScopeEngineRW))
			r.Post("/engines/{engine}/commands", s.handleSubmitCommands)
			r.Put("/engines/{engine}/weights", s.handleLoadWeights)
			r.Post("/search/classical", s.handleSearchClassical)
			r.Post("/search/neural", s.handleSearchNeural)
			r.Post("/shutdown", s.handleShutdown)
		})
		r.With(s.requireScopes(auth.ScopeJournalRO)).Get("/commands", s.handleListCommands)
		r.With(s.requireScopes(auth.ScopeEventsRO)).Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
