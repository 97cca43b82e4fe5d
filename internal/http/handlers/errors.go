package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rentchain/escrow/internal/http/dto"
	"github.com/rentchain/escrow/internal/middleware"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/services"
	"go.uber.org/zap"
)

var kindStatus = map[services.Kind]int{
	services.KindValidation:    fiber.StatusBadRequest,
	services.KindAuthorization: fiber.StatusForbidden,
	services.KindStateConflict: fiber.StatusConflict,
	services.KindResource:      fiber.StatusUnprocessableEntity,
	services.KindPolicy:        fiber.StatusUnprocessableEntity,
	services.KindNotFound:      fiber.StatusNotFound,
	services.KindUnavailable:   fiber.StatusServiceUnavailable,
}

// StatusFor maps an engine error kind onto an HTTP status.
func StatusFor(err error) int {
	if st, ok := kindStatus[services.KindOf(err)]; ok {
		return st
	}
	return fiber.StatusInternalServerError
}

// respondError пишет ошибку движка в едином формате. Всё, что не является
// *services.Error, отдаётся как 500 без деталей.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID := middleware.GetRequestID(c)
	var e *services.Error
	if !errors.As(err, &e) {
		log.Error("request failed", zap.String("request_id", reqID), zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error", RequestID: reqID})
	}
	return c.Status(StatusFor(err)).JSON(dto.ErrorResponse{
		Error:     e.Error(),
		Code:      e.Code,
		Kind:      string(e.Kind),
		RequestID: reqID,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, Code: "invalid_request", Kind: string(services.KindValidation), RequestID: middleware.GetRequestID(c)})
}

func paymentIDParam(c *fiber.Ctx) (models.PaymentID, bool) {
	n, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return models.PaymentID(n), true
}
