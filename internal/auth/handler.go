package auth

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_vault/internal/identity"
)

// CallerLocal is the fiber.Ctx locals key holding the authenticated account.
const CallerLocal = "caller"

// Handler exposes auth endpoints for register/login/refresh/logout.
type Handler struct {
	ids *identity.Service
	svc *Service
}

func NewHandler(ids *identity.Service, svc *Service) *Handler {
	return &Handler{ids: ids, svc: svc}
}

type credentialsRequest struct {
	Account string `json:"account"`
	Secret  string `json:"secret"`
}

// registerRequest carries a personal_sign signature of
// identity.RegistrationMessage made with the account key.
type registerRequest struct {
	credentialsRequest
	Signature string `json:"signature"`
}

type loginResponse struct {
	Account      string `json:"account"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

func (r credentialsRequest) credentials() (identity.Credentials, error) {
	if !common.IsHexAddress(r.Account) {
		return identity.Credentials{}, fiber.NewError(http.StatusBadRequest, "account must be a hex address")
	}
	return identity.Credentials{Account: common.HexToAddress(r.Account), Secret: r.Secret}, nil
}

// Register stores credentials for an account whose key signed the request.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	creds, err := req.credentials()
	if err != nil {
		return err
	}
	if creds.Signature, err = hexutil.Decode(req.Signature); err != nil {
		return fiber.NewError(http.StatusBadRequest, "signature must be 0x-prefixed hex")
	}
	cred, err := h.ids.Register(c.UserContext(), creds)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrAlreadyRegistered):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, identity.ErrInvalidProof):
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		case errors.Is(err, identity.ErrReservedAccount):
			return fiber.NewError(http.StatusForbidden, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"account":    cred.Account.Hex(),
		"created_at": cred.CreatedAt,
	})
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	creds, err := req.credentials()
	if err != nil {
		return err
	}
	cred, err := h.ids.Authenticate(c.UserContext(), creds)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	pair, err := h.svc.Login(cred)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		Account:      cred.Account.Hex(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenVersion: cred.TokenVersion,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates the caller's existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	caller, ok := c.Locals(CallerLocal).(common.Address)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if err := h.svc.Logout(c.UserContext(), caller); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
