package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_vault/internal/infra"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		deps, ok := infra.Check(c.UserContext(), d.DB, d.Cache)
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    deps,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
