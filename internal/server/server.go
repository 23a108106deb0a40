package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"ragsearch/internal/database"
	"ragsearch/internal/metrics"
	"ragsearch/internal/rag"
)

const (
	bodyLimit         = "1M"
	slowRequestWarnAt = 30 * time.Second
)

// Answerer runs the pipeline for one query.
type Answerer interface {
	Answer(ctx context.Context, query string) (rag.Result, error)
}

// QueryLogger persists handled queries. A nil QueryLogger disables the log.
type QueryLogger interface {
	RecordQuery(ctx context.Context, record database.QueryRecord) error
}

type Config struct {
	Addr string
	// RateLimit is the allowed /query requests per second per client IP;
	// zero disables limiting.
	RateLimit    float64
	AllowOrigins []string
}

type Server struct {
	echo     *echo.Echo
	addr     string
	answerer Answerer
	queryLog QueryLogger
	log      *slog.Logger
}

func New(cfg Config, answerer Answerer, queryLog QueryLogger, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		addr:     cfg.Addr,
		answerer: answerer,
		queryLog: queryLog,
		log:      log,
	}

	e.HTTPErrorHandler = s.handleError

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogRequestID:  true,
		LogRemoteIP:   true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: s.logRequest,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))

	var queryMiddleware []echo.MiddlewareFunc
	if cfg.RateLimit > 0 {
		queryMiddleware = append(queryMiddleware, middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit)),
			DenyHandler: func(c echo.Context, _ string, _ error) error {
				return c.JSON(http.StatusTooManyRequests, errorResponse{
					Error: "Too many requests",
					Kind:  kindRateLimited,
				})
			},
		}))
	}

	e.POST("/query", s.handleQuery, queryMiddleware...)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return s
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving on the configured address until Shutdown is called.
func (s *Server) Start() error {
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	ctx := c.Request().Context()

	attrs := []slog.Attr{
		slog.String("method", v.Method),
		slog.String("uri", v.URI),
		slog.Int("status", v.Status),
		slog.Int64("latencyMs", v.Latency.Milliseconds()),
		slog.String("requestID", v.RequestID),
		slog.String("remoteIP", v.RemoteIP),
	}

	switch {
	case v.Error != nil && v.Status >= http.StatusInternalServerError:
		s.log.LogAttrs(ctx, slog.LevelError, "Request failed", append(attrs, slog.Any("error", v.Error))...)
	case v.Latency > slowRequestWarnAt:
		s.log.LogAttrs(ctx, slog.LevelWarn, "Slow request is handled", attrs...)
	default:
		s.log.LogAttrs(ctx, slog.LevelInfo, "Request is handled", attrs...)
	}

	return nil
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}

	kind := kindInvalidRequest
	if code >= http.StatusInternalServerError {
		kind = rag.KindUnknownFailure.String()
	}

	if writeErr := c.JSON(code, errorResponse{Error: msg, Kind: kind}); writeErr != nil {
		s.log.ErrorContext(c.Request().Context(), "Failed to write error response",
			"error", writeErr,
			"status", code,
			"originalError", err)
	}
}
