// Package server exposes the hallucination detection and processing
// services over HTTP.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
)

const shutdownTimeout = 10 * time.Second

// TextProcessor processes a single text
type TextProcessor interface {
	Process(ctx context.Context, text string, entityTypes []string) (*model.TextProcessingResult, error)
}

// FileProcessor processes a base64 encoded file
type FileProcessor interface {
	Process(ctx context.Context, req model.FileProcessingRequest) (*model.FileProcessingResult, error)
}

// HallucinationDetector diffs the entities of a request and its response
type HallucinationDetector interface {
	Detect(ctx context.Context, requestText string, responseText string, entityTypes []string) (*model.DiffResult, error)
}

// FileReader reads persisted files
type FileReader interface {
	SelectFileByFileID(fileID string) (*model.ProcessedFile, error)
	SelectFileChunks(fileRID uuid.UUID) ([]*model.Chunk, error)
}

// Services are the backends of the HTTP routes.
// Files is optional, GET /file/:file_id is only registered when it is set.
type Services struct {
	Text          TextProcessor
	File          FileProcessor
	Hallucination HallucinationDetector
	Files         FileReader
}

// Server is the HTTP server
type Server struct {
	echo     *echo.Echo
	config   *helper.ServerConfiguration
	services Services
	log      *slog.Logger
}

// NewServer creates the server and registers all routes
func NewServer(config *helper.ServerConfiguration, services Services, logger *slog.Logger) (*Server, error) {
	if config == nil {
		return nil, helper.NewError("server configuration validation", fmt.Errorf("server configuration is nil"))
	}
	if services.Text == nil || services.File == nil || services.Hallucination == nil {
		return nil, helper.NewError("server services validation", fmt.Errorf("text, file and hallucination services must be provided"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:     echo.New(),
		config:   config,
		services: services,
		log:      logger,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = NewCustomValidator()
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				s.log.Error("Request failed", append(attrs, slog.String("error", v.Error.Error()))...)
			} else {
				s.log.Debug("Request", attrs...)
			}
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit("64M"))
	s.echo.Use(metricsMiddleware)

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/hallucination/check", s.checkHallucinations)
	s.echo.POST("/file/process", s.processFile)
	s.echo.POST("/text/process", s.processText)

	if s.services.Files != nil {
		s.echo.GET("/file/:file_id", s.getFile)
	}
}

// Handler returns the http.Handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled and then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting server", slog.String("address", s.config.Address()))
		if err := s.echo.Start(s.config.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return helper.NewError("start server", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return helper.NewError("shutdown server", err)
	}
	return nil
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// handleError renders every error as {"detail": "..."}
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := err.Error()

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		detail = fmt.Sprint(httpErr.Message)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Detail: detail})
	}
	if err != nil {
		s.log.Error("Failed to write error response", slog.String("error", err.Error()))
	}
}
