package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rentchain/escrow/internal/http/dto"
	"github.com/rentchain/escrow/internal/middleware"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/services"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	payments *services.PaymentService
	arbiter  *services.Arbiter
	now      func() time.Time
	log      *zap.Logger
}

func NewPaymentHandler(payments *services.PaymentService, arbiter *services.Arbiter, now func() time.Time, log *zap.Logger) *PaymentHandler {
	if now == nil {
		now = time.Now
	}
	return &PaymentHandler{payments: payments, arbiter: arbiter, now: now, log: log}
}

// CreatePayment создаёт обязательство, плательщиком становится вызывающий.
// POST /payments
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req dto.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	payee, err := models.ParseAddress(req.Payee)
	if err != nil {
		return badRequest(c, "invalid payee address")
	}
	gross, err := dto.ToAmount(req.Amount)
	if err != nil {
		return badRequest(c, err.Error())
	}

	p, err := h.payments.CreatePayment(c.Context(), middleware.GetCaller(c), services.CreatePaymentInput{
		Payee:       payee,
		PropertyRef: req.PropertyRef,
		Gross:       gross,
		DueAt:       req.DueAt,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.NewPaymentResponse(p, h.now())})
}

// ListPayments возвращает платежи вызывающего в любой роли.
// GET /payments?view=pending|overdue
func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)

	var (
		ps  []*models.Payment
		err error
	)
	switch c.Query("view") {
	case "":
		ps, err = h.payments.ListByParty(c.Context(), caller)
	case "pending":
		ps, err = h.payments.PendingFor(c.Context(), caller)
	case "overdue":
		ps, err = h.payments.OverdueFor(c.Context(), caller)
	default:
		return badRequest(c, "view must be pending or overdue")
	}
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPaymentList(ps, h.now())})
}

// GetPayment доступен только сторонам платежа и оператору.
// GET /payments/:id
func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	id, ok := paymentIDParam(c)
	if !ok {
		return badRequest(c, "invalid payment id")
	}

	p, err := h.payments.GetFor(c.Context(), middleware.GetCaller(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPaymentResponse(p, h.now())})
}

// SettlePayment
// POST /payments/:id/settle
func (h *PaymentHandler) SettlePayment(c *fiber.Ctx) error {
	id, ok := paymentIDParam(c)
	if !ok {
		return badRequest(c, "invalid payment id")
	}

	var req dto.SettlePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	p, err := h.payments.Settle(c.Context(), middleware.GetCaller(c), id, services.SettleInput{
		Method:      req.Method,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPaymentResponse(p, h.now())})
}

// DisputePayment
// POST /payments/:id/dispute
func (h *PaymentHandler) DisputePayment(c *fiber.Ctx) error {
	id, ok := paymentIDParam(c)
	if !ok {
		return badRequest(c, "invalid payment id")
	}

	var req dto.DisputePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	p, err := h.arbiter.Dispute(c.Context(), middleware.GetCaller(c), id, req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPaymentResponse(p, h.now())})
}

// RefundPayment доступен только оператору.
// POST /payments/:id/refund
func (h *PaymentHandler) RefundPayment(c *fiber.Ctx) error {
	id, ok := paymentIDParam(c)
	if !ok {
		return badRequest(c, "invalid payment id")
	}

	p, err := h.arbiter.Refund(c.Context(), middleware.GetCaller(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPaymentResponse(p, h.now())})
}

// GetPaymentEvents отдаёт аудит-лог платежа.
// GET /payments/:id/events
func (h *PaymentHandler) GetPaymentEvents(c *fiber.Ctx) error {
	id, ok := paymentIDParam(c)
	if !ok {
		return badRequest(c, "invalid payment id")
	}

	evts, err := h.payments.History(c.Context(), middleware.GetCaller(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewEventList(evts)})
}
