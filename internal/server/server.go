package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"todosync/internal/storage/sqlite"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Server exposes the local tracker over a Todoist-compatible HTTP API.
type Server struct {
	engine *gin.Engine
	store  *sqlite.Store
	logger zerolog.Logger
	token  string
}

// New constructs the HTTP server with routes and middleware configured.
// A non-empty token makes every /api/v1 route require it as a bearer token.
func New(store *sqlite.Store, logger zerolog.Logger, token string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	srv := &Server{
		engine: router,
		store:  store,
		logger: logger.With().Str("component", "server").Logger(),
		token:  token,
	}
	router.Use(srv.requestLogger())

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/healthz", s.handleHealth)

	v1 := api.Group("/v1", s.requireToken())
	{
		projects := v1.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.GET(":id", s.handleGetProject)
			projects.POST(":id", s.handleUpdateProject)
			projects.DELETE(":id", s.handleDeleteProject)
		}

		tasks := v1.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.GET(":id", s.handleGetTask)
			tasks.POST(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
		}

		v1.GET("/runs", s.handleListRuns)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, []byte("Bearer "+s.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// page is the cursor envelope of list endpoints. The cursor is the offset
// of the next item.
type page[T any] struct {
	Results    []T     `json:"results"`
	NextCursor *string `json:"next_cursor"`
}

func paginate[T any](c *gin.Context, items []T) (page[T], bool) {
	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return page[T]{}, false
		}
		limit = min(n, maxPageLimit)
	}
	offset := 0
	if raw := c.Query("cursor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return page[T]{}, false
		}
		offset = n
	}

	p := page[T]{Results: []T{}}
	if offset >= len(items) {
		return p, true
	}
	end := min(offset+limit, len(items))
	p.Results = items[offset:end]
	if end < len(items) {
		next := strconv.Itoa(end)
		p.NextCursor = &next
	}
	return p, true
}

// respondError logs the error and returns a JSON payload. Missing rows map
// to 404.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if errors.Is(err, sqlite.ErrNotFound) {
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	} else {
		s.logger.Warn().Err(err).Str("path", c.FullPath()).Msg("request rejected")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dst)
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
