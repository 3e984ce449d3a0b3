package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_vault/internal/custody"
	"github.com/congo-pay/custody_vault/internal/vault"
)

// RegisterVaultReadRoutes wires the public read endpoints.
func RegisterVaultReadRoutes(r fiber.Router, h *vault.Handler) {
	r.Get("/owner", h.Owner)
	r.Get("/paused", h.Paused)
	r.Get("/assets/:asset", h.Asset)
	r.Get("/balances/:account/:asset", h.Balance)
	r.Get("/events", h.Events)
}

// RegisterVaultRoutes wires caller deposit and withdrawal endpoints.
func RegisterVaultRoutes(r fiber.Router, h *vault.Handler) {
	r.Post("/deposits", h.Deposit)
	r.Post("/withdrawals", h.Withdraw)
}

// RegisterAdminRoutes wires owner-only endpoints. Ownership is checked by the
// vault itself, not by the route.
func RegisterAdminRoutes(r fiber.Router, h *vault.Handler) {
	admin := r.Group("/admin")
	admin.Put("/assets/:asset", h.SetWhitelisted)
	admin.Post("/pause", h.Pause)
	admin.Post("/unpause", h.Unpause)
	admin.Post("/ownership", h.TransferOwnership)
}

// RegisterDevCustodyRoutes exposes the in-memory token book.
func RegisterDevCustodyRoutes(r fiber.Router, h *custody.Handler) {
	dev := r.Group("/dev/tokens/:asset")
	dev.Post("/mint", h.Mint)
	dev.Post("/approve", h.Approve)
	dev.Get("/holders/:account", h.Holding)
}
