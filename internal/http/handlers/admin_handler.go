package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rentchain/escrow/internal/http/dto"
	"github.com/rentchain/escrow/internal/middleware"
	"github.com/rentchain/escrow/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdminHandler struct {
	admin *services.AdminService
	log   *zap.Logger
}

func NewAdminHandler(admin *services.AdminService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, log: log}
}

// SetFeeRate меняет ставку комиссии, действует только на будущие settle.
// POST /admin/fee-rate
func (h *AdminHandler) SetFeeRate(c *fiber.Ctx) error {
	var req dto.SetFeeRateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.FeeBps == nil {
		return badRequest(c, "fee_bps is required")
	}

	s, err := h.admin.SetFeeRate(c.Context(), middleware.GetCaller(c), *req.FeeBps)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: s})
}

// Pause
// POST /admin/pause
func (h *AdminHandler) Pause(c *fiber.Ctx) error {
	s, err := h.admin.Pause(c.Context(), middleware.GetCaller(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: s})
}

// Unpause
// POST /admin/unpause
func (h *AdminHandler) Unpause(c *fiber.Ctx) error {
	s, err := h.admin.Unpause(c.Context(), middleware.GetCaller(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: s})
}

// Quote считает комиссию по текущей ставке, публичный.
// GET /fees/quote?amount=1000.00
func (h *AdminHandler) Quote(c *fiber.Ctx) error {
	d, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		return badRequest(c, "amount is required")
	}
	gross, err := dto.ToAmount(d)
	if err != nil {
		return badRequest(c, err.Error())
	}

	q, err := h.admin.Quote(c.Context(), gross)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewQuoteResponse(q)})
}
