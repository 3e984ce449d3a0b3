package vault

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"

	"github.com/congo-pay/custody_vault/internal/auth"
	"github.com/congo-pay/custody_vault/internal/store"
)

// Handler exposes the vault over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a vault handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Owner returns the current administrator.
func (h *Handler) Owner(c *fiber.Ctx) error {
	owner, err := h.service.Owner(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{"owner": owner.Hex()})
}

// Paused reports the gate state.
func (h *Handler) Paused(c *fiber.Ctx) error {
	paused, err := h.service.Paused(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{"paused": paused})
}

// Asset reports whether an asset is whitelisted.
func (h *Handler) Asset(c *fiber.Ctx) error {
	asset, err := parseAddress(c.Params("asset"), "asset")
	if err != nil {
		return err
	}
	ok, err := h.service.IsWhitelisted(c.UserContext(), asset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{"asset": asset.Hex(), "whitelisted": ok})
}

// Balance returns the ledger balance of an account in an asset.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account, err := parseAddress(c.Params("account"), "account")
	if err != nil {
		return err
	}
	asset, err := parseAddress(c.Params("asset"), "asset")
	if err != nil {
		return err
	}
	bal, err := h.service.BalanceOf(c.UserContext(), account, asset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{"account": account.Hex(), "asset": asset.Hex(), "balance": bal.Dec()})
}

// Events pages the audit log. ?after is exclusive; ?limit defaults to 100.
func (h *Handler) Events(c *fiber.Ctx) error {
	after, err := queryUint(c, "after", 0)
	if err != nil {
		return err
	}
	limit, err := queryUint(c, "limit", store.DefaultEventPage)
	if err != nil {
		return err
	}
	list, err := h.service.Events(c.UserContext(), after, int(limit))
	if err != nil {
		return toHTTPError(err)
	}
	page := EventPage{Events: make([]EventResponse, 0, len(list)), Next: after}
	for _, e := range list {
		page.Events = append(page.Events, toEventResponse(e))
		page.Next = e.Seq
	}
	return c.JSON(page)
}

// SetWhitelisted accepts or rejects an asset. Owner only.
func (h *Handler) SetWhitelisted(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	asset, err := parseAddress(c.Params("asset"), "asset")
	if err != nil {
		return err
	}
	var req WhitelistRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid_body", err.Error())
	}
	if req.Accepted == nil {
		return badRequest("invalid_body", "accepted is required")
	}
	ev, err := h.service.SetWhitelisted(c.UserContext(), caller, asset, *req.Accepted)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toEventResponse(ev))
}

// Pause halts deposits and withdrawals. Owner only.
func (h *Handler) Pause(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	ev, err := h.service.Pause(c.UserContext(), caller)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toEventResponse(ev))
}

// Unpause resumes deposits and withdrawals. Owner only.
func (h *Handler) Unpause(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	ev, err := h.service.Unpause(c.UserContext(), caller)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toEventResponse(ev))
}

// TransferOwnership hands the owner role to another account. Owner only.
func (h *Handler) TransferOwnership(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var req OwnershipRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid_body", err.Error())
	}
	next, err := parseAddress(req.NewOwner, "new_owner")
	if err != nil {
		return err
	}
	ev, err := h.service.TransferOwnership(c.UserContext(), caller, next)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toEventResponse(ev))
}

// Deposit moves the caller's funds into custody and credits the ledger.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.amountCall(c, h.service.Deposit)
}

// Withdraw debits the caller's ledger balance and pays out of custody.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.amountCall(c, h.service.Withdraw)
}

type amountFunc func(ctx context.Context, account, asset common.Address, amount *uint256.Int) (Receipt, error)

func (h *Handler) amountCall(c *fiber.Ctx, call amountFunc) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	asset, amount, err := ParseAmountRequest(c)
	if err != nil {
		return err
	}
	receipt, err := call(c.UserContext(), caller, asset, amount)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toReceiptResponse(receipt))
}

// ParseAmountRequest decodes an AmountRequest body.
func ParseAmountRequest(c *fiber.Ctx) (common.Address, *uint256.Int, error) {
	var req AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return common.Address{}, nil, badRequest("invalid_body", err.Error())
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return common.Address{}, nil, err
	}
	return asset, amount, nil
}

// ParseAmount reads a base-10 unsigned integer below 2^256.
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, badRequest("invalid_amount", "amount is required")
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, badRequest("invalid_amount", "amount must be a base-10 integer below 2^256")
	}
	return amount, nil
}

func parseAddress(s, field string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, badRequest("invalid_"+field, field+" must be a hex address")
	}
	return common.HexToAddress(s), nil
}

func callerOf(c *fiber.Ctx) (common.Address, error) {
	caller, ok := c.Locals(auth.CallerLocal).(common.Address)
	if !ok {
		return common.Address{}, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return caller, nil
}

func queryUint(c *fiber.Ctx, key string, fallback uint64) (uint64, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, badRequest("invalid_query", key+" must be a non-negative integer")
	}
	return n, nil
}
