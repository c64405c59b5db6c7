package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// AnalysisHandler exposes request previews, analysis and the analysis log.
type AnalysisHandler struct {
	service   service.AnalysisService
	logger    zerolog.Logger
	rateLimit int
}

// NewAnalysisHandler constructs the analysis handler. rateLimit caps analyze
// calls per session per minute.
func NewAnalysisHandler(service service.AnalysisService, rateLimit int, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:   service,
		logger:    logger.With().Str("component", "analysis_handler").Logger(),
		rateLimit: rateLimit,
	}
}

// Register binds analysis routes under the sessions group.
func (h *AnalysisHandler) Register(router fiber.Router) {
	router.Get("/:id/request", h.preview)
	router.Post("/:id/analyze", middleware.RateLimit("analyze", h.rateLimit, time.Minute), h.analyze)
	router.Get("/:id/analyses", h.history)
}

func (h *AnalysisHandler) preview(c *fiber.Ctx) error {
	request, err := h.service.Preview(requestContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "grading request", request)
}

func (h *AnalysisHandler) analyze(c *fiber.Ctx) error {
	result, err := h.service.Analyze(requestContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().
		Str("session_id", result.SessionID).
		Str("analysis_id", result.ID).
		Bool("cached", result.Cached).
		Int64("duration_ms", result.DurationMs).
		Msg("analysis completed")

	return utils.SendSuccess(c, "analysis completed", result)
}

func (h *AnalysisHandler) history(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	items, err := h.service.History(requestContext(c), c.Params("id"), limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "analysis history", items)
}
