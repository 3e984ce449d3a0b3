package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_vault/internal/config"
	"github.com/congo-pay/custody_vault/internal/middleware"
	"github.com/congo-pay/custody_vault/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, deps routes.Deps) (*Server, error) {
	app := NewApp(cfg, deps.Logger)

	deps.Cfg = cfg
	if err := routes.Setup(app, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// NewApp builds the fiber application with the JSON error envelope.
func NewApp(cfg config.Config, logger *slog.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: ErrorHandler(logger),
	})
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

type codedError interface {
	HTTPStatus() int
	ErrorCode() string
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	RequestID string    `json:"request_id"`
	Error     errorBody `json:"error"`
}

// ErrorHandler renders every error as
// {"request_id": "...", "error": {"code": "...", "message": "..."}}.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		body := errorBody{Code: "internal", Message: "internal error"}

		var coded codedError
		var fe *fiber.Error
		switch {
		case errors.As(err, &coded):
			status = coded.HTTPStatus()
			body = errorBody{Code: coded.ErrorCode(), Message: err.Error()}
		case errors.As(err, &fe):
			status = fe.Code
			body = errorBody{Code: statusCode(fe.Code), Message: fe.Message}
		default:
			if logger != nil {
				logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
			}
		}

		return c.Status(status).JSON(errorEnvelope{
			RequestID: middleware.RequestIDFrom(c),
			Error:     body,
		})
	}
}

// statusCode derives a snake_case code from the status text, e.g.
// 429 -> "too_many_requests".
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
