package controller

import (
	"collabsearch-be/internal/pkg/serverutils"
	"collabsearch-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IEventController interface {
	RegisterRoutes(r fiber.Router)
	History(ctx *fiber.Ctx) error
	LatestSequence(ctx *fiber.Ctx) error
}

type eventController struct {
	registry  service.ISessionRegistryService
	sequencer service.IEventSequencerService
}

func NewEventController(registry service.ISessionRegistryService, sequencer service.IEventSequencerService) IEventController {
	return &eventController{
		registry:  registry,
		sequencer: sequencer,
	}
}

func (c *eventController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/search-session/v1/:sessionId/events")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.History)
	h.Get("latest", c.LatestSequence)
}

func (c *eventController) History(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	if _, err := c.registry.ActiveParticipant(ctx.Context(), sessionId, userId); err != nil {
		return err
	}

	fromSequence := int64(ctx.QueryInt("from", 0))
	limit := ctx.QueryInt("limit", 0)

	res, err := c.sequencer.History(ctx.Context(), sessionId, fromSequence, limit)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get event history", res))
}

func (c *eventController) LatestSequence(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	if _, err := c.registry.ActiveParticipant(ctx.Context(), sessionId, userId); err != nil {
		return err
	}

	latest, err := c.sequencer.LatestSequence(ctx.Context(), sessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get latest sequence", fiber.Map{
		"latest_sequence": latest,
	}))
}
