// Package server exposes profiling and duplicate detection over HTTP.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dqcheck-cli/internal/dedupe"
	"github.com/KaramelBytes/dqcheck-cli/internal/report"
	"github.com/KaramelBytes/dqcheck-cli/internal/store"
)

// DefaultMaxRecords caps the records accepted per request.
const DefaultMaxRecords = 100000

// Server holds the defaults applied to every request.
type Server struct {
	// Scan carries default profile and duplicate options.
	Scan report.Options
	// MaxRecords rejects larger payloads; 0 uses DefaultMaxRecords.
	MaxRecords int
	// Store enables scan history endpoints and saving scans; may be nil.
	Store *store.Store

	log *zap.Logger
}

// New returns a server using zap.L() for request logs.
func New(scan report.Options, st *store.Store) *Server {
	return &Server{Scan: scan, Store: st, log: zap.L().Named("server")}
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.Health)
	v1 := r.Group("/v1")
	v1.POST("/duplicates", s.Duplicates)
	v1.POST("/profile", s.Profile)
	v1.POST("/scan", s.ScanRecords)
	v1.GET("/scans", s.ListScans)
	v1.GET("/scans/:id", s.GetScan)
	v1.GET("/scorers", s.Scorers)
	return r
}

func (s *Server) logger() *zap.Logger {
	if s.log == nil {
		return zap.L()
	}
	return s.log
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Scorers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scorers": dedupe.ScorerNames()})
}

// fail maps an error to a JSON error response.
func (s *Server) fail(c *gin.Context, err error) {
	var ipe *dedupe.InvalidParameterError
	switch {
	case errors.As(err, &ipe):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "param": ipe.Param})
	case errors.Is(err, errTooManyRecords):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrAmbiguousID):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
