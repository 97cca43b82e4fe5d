package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rentchain/escrow/internal/http/dto"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/services"
	"go.uber.org/zap"
)

type StatsHandler struct {
	stats *services.StatsService
	log   *zap.Logger
}

func NewStatsHandler(stats *services.StatsService, log *zap.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, log: log}
}

// Platform
// GET /stats/platform
func (h *StatsHandler) Platform(c *fiber.Ctx) error {
	st, err := h.stats.PlatformStats(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPlatformStatsResponse(st)})
}

// Party отдаёт агрегаты для внешнего репутационного сервиса.
// GET /parties/:address/stats
func (h *StatsHandler) Party(c *fiber.Ctx) error {
	addr, err := models.ParseAddress(c.Params("address"))
	if err != nil {
		return badRequest(c, "invalid address")
	}

	st, err := h.stats.PartyStats(c.Context(), addr)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: st})
}
