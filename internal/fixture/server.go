// Package fixture is a reference implementation of the speaker dashboard's
// REST backend over the sqlite store. It performs no transcription: uploads
// are stored as empty conversations and answered with canned stage logs. It
// backs the client tests and `speakerdash fixture serve`.
package fixture

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwulff/speakerdash/internal/db"
)

// Server serves the backend API from a db.Store.
type Server struct {
	store       *db.Store
	logger      zerolog.Logger
	uploadDelay time.Duration
	engine      *gin.Engine
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithUploadDelay holds every upload reply for d, simulating slow
// processing.
func WithUploadDelay(d time.Duration) Option {
	return func(s *Server) { s.uploadDelay = d }
}

// New builds a Server over store.
func New(store *db.Store, opts ...Option) *Server {
	s := &Server{store: store, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	s.routes(r)
	s.engine = r
	return s
}

// NewSeeded opens an in-memory store with demo data and serves it. The
// returned close function releases the store.
func NewSeeded(ctx context.Context, opts ...Option) (*Server, func() error, error) {
	store, err := db.Open(":memory:")
	if err != nil {
		return nil, nil, err
	}
	if err := store.Seed(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return New(store, opts...), store.Close, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/conversations", s.listConversations)
		api.POST("/conversations/upload", s.uploadConversation)
		api.GET("/conversations/:id", s.getConversation)
		api.PUT("/conversations/:id", s.updateConversation)
		api.DELETE("/conversations/:id", s.deleteConversation)

		api.GET("/speakers", s.listSpeakers)
		api.POST("/speakers", s.createSpeaker)
		api.PUT("/speakers/:id", s.updateSpeaker)
		api.DELETE("/speakers/:id", s.deleteSpeaker)
		api.PUT("/speakers/:id/update-all-utterances", s.reassignUtterances)

		api.PUT("/utterances/:id", s.updateUtterance)
		api.GET("/audio/:conversation/:utterance", s.audio)

		api.GET("/pinecone/speakers", s.listEmbeddings)
		api.POST("/pinecone/speakers", s.addEmbeddingSpeaker)
		api.POST("/pinecone/embeddings", s.addEmbedding)
		api.DELETE("/pinecone/speakers/:name", s.deleteEmbeddingSpeaker)
		api.DELETE("/pinecone/embeddings/:id", s.deleteEmbedding)
	}
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:           s.engine,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("start fixture server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.logger.Info().Msg("shutting down fixture server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// serverError logs err and answers 500 with its text, as the backend does.
func (s *Server) serverError(c *gin.Context, op string, err error) {
	s.logger.Error().Err(err).Str("op", op).Msg("request failed")
	detail(c, http.StatusInternalServerError, err.Error())
}
