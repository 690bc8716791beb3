// Package api serves draft verification over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/specdec/internal/logger"
	"github.com/samcharles93/specdec/internal/rejection"
	"github.com/samcharles93/specdec/internal/version"
)

// DefaultMaxBodyBytes bounds a /v1/verify request body.
const DefaultMaxBodyBytes = 64 << 20

// Verifier is the part of *rejection.Sampler the server needs.
type Verifier interface {
	Forward(ctx context.Context, in rejection.Input) (*rejection.Output, error)
	Stats() rejection.Stats
}

type Server struct {
	verifier     Verifier
	gatherer     prometheus.Gatherer
	log          logger.Logger
	clock        func() time.Time
	maxBodyBytes int64
}

type Option func(*Server)

// WithGatherer exposes g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

func NewServer(v Verifier, opts ...Option) *Server {
	s := &Server{
		verifier:     v,
		gatherer:     prometheus.DefaultGatherer,
		log:          logger.Discard(),
		clock:        time.Now,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "api")
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/verify", s.handleVerify)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", s.handleMetrics)
}

type HealthResponse struct {
	Status         string          `json:"status"`
	Version        string          `json:"version"`
	Stats          rejection.Stats `json:"stats"`
	AcceptanceRate float64         `json:"acceptance_rate"`
}

func (s *Server) handleHealth(c *echo.Context) error {
	st := s.verifier.Stats()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		Version:        version.String(),
		Stats:          st,
		AcceptanceRate: st.AcceptanceRate(),
	})
}

func (s *Server) handleMetrics(c *echo.Context) error {
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(c.Response(), c.Request())
	return nil
}
