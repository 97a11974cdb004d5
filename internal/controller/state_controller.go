package controller

import (
	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/pkg/serverutils"
	"collabsearch-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IStateController interface {
	RegisterRoutes(r fiber.Router)
	UpdateState(ctx *fiber.Ctx) error
	GetState(ctx *fiber.Ctx) error
	SyncState(ctx *fiber.Ctx) error
	ListConflicts(ctx *fiber.Ctx) error
	ResolveConflict(ctx *fiber.Ctx) error
}

type stateController struct {
	state service.ISessionStateService
}

func NewStateController(state service.ISessionStateService) IStateController {
	return &stateController{
		state: state,
	}
}

func (c *stateController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/search-session/v1/:sessionId/state")
	h.Use(serverutils.JwtMiddleware)
	h.Put("", c.UpdateState)
	h.Get("", c.SyncState)
	h.Get("key/:key", c.GetState)
	h.Get("conflicts", c.ListConflicts)
	h.Post("conflicts/resolve", c.ResolveConflict)
}

func (c *stateController) UpdateState(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req dto.UpdateStateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.SessionId = sessionId

	res, err := c.state.UpdateState(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update session state", res))
}

func (c *stateController) GetState(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.state.GetState(ctx.Context(), sessionId, userId, ctx.Params("key"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session state", res))
}

func (c *stateController) SyncState(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.state.SyncState(ctx.Context(), sessionId, userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success sync session state", res))
}

func (c *stateController) ListConflicts(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.ErrBadRequest
	}
	pendingOnly := ctx.QueryBool("pending", true)

	res, err := c.state.ListConflicts(ctx.Context(), sessionId, userId, pendingOnly)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list conflicts", res))
}

func (c *stateController) ResolveConflict(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)

	var req dto.ResolveConflictRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	res, err := c.state.ResolveConflict(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success resolve conflict", res))
}
