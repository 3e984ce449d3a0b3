package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_vault/internal/auth"
)

// TokenVerifier resolves an access token to the account it was issued to.
type TokenVerifier interface {
	VerifyAccess(ctx context.Context, token string) (common.Address, error)
}

// JWTAuth returns a middleware that validates bearer access tokens and stores
// the caller's account under auth.CallerLocal.
func JWTAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		caller, err := verifier.VerifyAccess(c.UserContext(), tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(auth.CallerLocal, caller)
		return c.Next()
	}
}

// Caller returns the authenticated account set by JWTAuth.
func Caller(c *fiber.Ctx) (common.Address, bool) {
	caller, ok := c.Locals(auth.CallerLocal).(common.Address)
	return caller, ok
}
