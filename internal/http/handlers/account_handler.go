package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rentchain/escrow/internal/http/dto"
	"github.com/rentchain/escrow/internal/middleware"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/services"
	"go.uber.org/zap"
)

type AccountHandler struct {
	accounts *services.AccountService
	log      *zap.Logger
}

func NewAccountHandler(accounts *services.AccountService, log *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, log: log}
}

// GetAccount возвращает баланс и allowance вызывающего.
// GET /me/account
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	acc, err := h.accounts.Balance(c.Context(), middleware.GetCaller(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewAccountResponse(acc)})
}

// SetAllowance задаёт сумму, которую движок может списать с вызывающего.
// POST /me/allowance
func (h *AccountHandler) SetAllowance(c *fiber.Ctx) error {
	var req dto.SetAllowanceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, err := dto.ToAmount(req.Amount)
	if err != nil {
		return badRequest(c, err.Error())
	}

	acc, err := h.accounts.Approve(c.Context(), middleware.GetCaller(c), amount)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewAccountResponse(acc)})
}

// Deposit зачисляет средства на счёт (on-ramp), только оператор.
// POST /admin/deposits
func (h *AccountHandler) Deposit(c *fiber.Ctx) error {
	var req dto.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	addr, err := models.ParseAddress(req.Address)
	if err != nil {
		return badRequest(c, "invalid address")
	}
	amount, err := dto.ToAmount(req.Amount)
	if err != nil {
		return badRequest(c, err.Error())
	}

	acc, err := h.accounts.Deposit(c.Context(), middleware.GetCaller(c), addr, amount)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.NewAccountResponse(acc)})
}
