// Package httpapi exposes sessions, classifiers and the recommendation engine
// over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kingrea/airway/internal/chat"
	"github.com/kingrea/airway/internal/logbook"
	"github.com/kingrea/airway/internal/metrics"
	"github.com/kingrea/airway/internal/navigation"
	"github.com/kingrea/airway/internal/session"
	"github.com/kingrea/airway/internal/steps"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// ErrChatBusy is returned when a session already has a reply streaming.
var ErrChatBusy = errors.New("a chat reply is already in progress")

const maxBodyBytes = 1 << 20

// Asker streams a reply to one user turn.
type Asker interface {
	Ask(ctx context.Context, conv *chat.Conversation, text string, onChunk func(string)) error
}

type entry struct {
	// mu serialises requests that drive the session. Chat does not take it.
	mu   sync.Mutex
	sess *session.Session
	// chatMu allows one reply per session at a time.
	chatMu sync.Mutex
	conv   *chat.Conversation
}

// Server holds the in-memory sessions behind the HTTP routes.
type Server struct {
	mu        sync.Mutex
	sessions  map[string]*entry
	catalog   *steps.Catalog
	unchecked bool
	assistant Asker
	metrics   *metrics.Metrics
	log       *logbook.Logbook
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog selects the step graph new sessions use.
func WithCatalog(catalog *steps.Catalog) Option {
	return func(s *Server) {
		if catalog != nil {
			s.catalog = catalog
		}
	}
}

// WithUnchecked makes new sessions accept any navigation target.
func WithUnchecked() Option {
	return func(s *Server) {
		s.unchecked = true
	}
}

// WithAssistant enables the chat route.
func WithAssistant(a Asker) Option {
	return func(s *Server) {
		s.assistant = a
	}
}

// WithMetrics records instruments on m instead of a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogbook sends request logs and session events to lb.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(s *Server) {
		s.log = lb
	}
}

// New builds a server with no sessions.
func New(opts ...Option) *Server {
	s := &Server{
		sessions: make(map[string]*entry),
		catalog:  steps.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// Router wires every route onto a new gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	logger := gin.Logger()
	if s.log != nil {
		logger = gin.LoggerWithWriter(s.log)
	}
	router.Use(
		logger,
		gin.Recovery(),
		limitBodySize(maxBodyBytes),
		s.metrics.Middleware(),
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api")
	api.GET("/steps", s.listSteps)
	api.POST("/classify/control", s.classifyControl)
	api.POST("/risk/score", s.scoreRisk)
	api.POST("/recommend", s.recommendStateless)

	sessions := api.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("/:id", s.getSession)
	sessions.DELETE("/:id", s.deleteSession)
	sessions.POST("/:id/navigate", s.navigate)
	sessions.POST("/:id/back", s.back)
	sessions.POST("/:id/reset", s.reset)
	sessions.PATCH("/:id/record", s.patchRecord)
	sessions.GET("/:id/recommendations", s.recommendations)
	sessions.POST("/:id/chat", s.chatTurn)
	return router
}

func (s *Server) newSession() *entry {
	opts := []navigation.Option{navigation.WithLogbook(s.log)}
	if s.unchecked {
		opts = append(opts, navigation.WithUnchecked())
	}
	e := &entry{
		sess: session.New(s.catalog, opts...),
		conv: chat.NewConversation(),
	}
	s.mu.Lock()
	s.sessions[e.sess.ID] = e
	s.mu.Unlock()
	s.metrics.SessionsCreated.Inc()
	s.metrics.SessionsActive.Inc()
	s.log.Info("session %s started", e.sess.ID)
	return e
}

func (s *Server) lookup(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

func (s *Server) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
