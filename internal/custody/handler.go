package custody

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"

	"github.com/congo-pay/custody_vault/internal/auth"
)

// Handler exposes a token book for development: callers mint test units to
// themselves and approve the custodian to pull them.
type Handler struct {
	book Faucet
}

func NewHandler(book Faucet) *Handler {
	return &Handler{book: book}
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// Mint credits the caller with test units of :asset.
func (h *Handler) Mint(c *fiber.Ctx) error {
	caller, asset, amount, err := h.parse(c)
	if err != nil {
		return err
	}
	if err := h.book.MintTo(c.UserContext(), asset, caller, amount); err != nil {
		if errors.Is(err, ErrSupplyOverflow) {
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return h.respond(c, http.StatusCreated, caller, asset)
}

// Approve sets the caller's allowance for the custodian on :asset.
func (h *Handler) Approve(c *fiber.Ctx) error {
	caller, asset, amount, err := h.parse(c)
	if err != nil {
		return err
	}
	if err := h.book.ApproveCustodian(c.UserContext(), asset, caller, amount); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return h.respond(c, http.StatusOK, caller, asset)
}

// Holding reports an account's external balance and allowance on :asset.
func (h *Handler) Holding(c *fiber.Ctx) error {
	asset, account := c.Params("asset"), c.Params("account")
	if !common.IsHexAddress(asset) || !common.IsHexAddress(account) {
		return fiber.NewError(http.StatusBadRequest, "asset and account must be hex addresses")
	}
	return h.respond(c, http.StatusOK, common.HexToAddress(account), common.HexToAddress(asset))
}

func (h *Handler) respond(c *fiber.Ctx, status int, holder, asset common.Address) error {
	held, err := h.book.HoldingOf(c.UserContext(), asset, holder)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(status).JSON(fiber.Map{
		"account":   holder.Hex(),
		"asset":     asset.Hex(),
		"balance":   held.Balance.Dec(),
		"allowance": held.Allowance.Dec(),
	})
}

func (h *Handler) parse(c *fiber.Ctx) (common.Address, common.Address, *uint256.Int, error) {
	caller, ok := c.Locals(auth.CallerLocal).(common.Address)
	if !ok {
		return common.Address{}, common.Address{}, nil, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if !common.IsHexAddress(c.Params("asset")) {
		return common.Address{}, common.Address{}, nil, fiber.NewError(http.StatusBadRequest, "asset must be a hex address")
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return common.Address{}, common.Address{}, nil, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		return common.Address{}, common.Address{}, nil, fiber.NewError(http.StatusBadRequest, "amount must be a base-10 integer")
	}
	return caller, common.HexToAddress(c.Params("asset")), amount, nil
}
