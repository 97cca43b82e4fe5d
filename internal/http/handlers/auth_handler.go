package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rentchain/escrow/internal/http/dto"
	"github.com/rentchain/escrow/internal/services"
	"go.uber.org/zap"
)

type AuthHandler struct {
	sessions *services.SessionService
	log      *zap.Logger
}

func NewAuthHandler(sessions *services.SessionService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, log: log}
}

// Challenge выдаёт одноразовый nonce для подписи кошельком.
// POST /auth/challenge
func (h *AuthHandler) Challenge(c *fiber.Ctx) error {
	ch, err := h.sessions.IssueChallenge(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ch})
}

// Verify проверяет wallet proof и выдаёт JWT.
// POST /auth/verify
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Nonce == "" || req.PublicKey == "" || req.Signature == "" {
		return badRequest(c, "public_key, nonce and signature are required")
	}

	sess, err := h.sessions.Verify(c.Context(), req.WalletProof)
	if err != nil {
		if services.KindOf(err) == services.KindAuthorization {
			h.log.Debug("wallet proof rejected", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error(), Code: "unauthenticated"})
		}
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: sess})
}
