package controller

import (
	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/pkg/serverutils"
	"collabsearch-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Join(ctx *fiber.Ctx) error
	Leave(ctx *fiber.Ctx) error
	Participants(ctx *fiber.Ctx) error
	UpdateParticipant(ctx *fiber.Ctx) error
}

type sessionController struct {
	registry service.ISessionRegistryService
}

func NewSessionController(registry service.ISessionRegistryService) ISessionController {
	return &sessionController{
		registry: registry,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/search-session/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Put(":id", c.Update)
	h.Delete(":id", c.Delete)
	h.Post(":id/join", c.Join)
	h.Post(":id/leave", c.Leave)
	h.Get(":id/participants", c.Participants)
	h.Put(":id/participants", c.UpdateParticipant)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	res, err := c.registry.CreateSession(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create search session", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.registry.GetSession(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get search session", res))
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	var workspaceId *uuid.UUID
	if raw := ctx.Query("workspace_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.ErrBadRequest
		}
		workspaceId = &id
	}

	res, err := c.registry.ListActiveSessions(ctx.Context(), workspaceId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list search sessions", res))
}

func (c *sessionController) Update(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req dto.UpdateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.Id = id

	res, err := c.registry.UpdateSession(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update search session", res))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	if err := c.registry.DeleteSession(ctx.Context(), userId, id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete search session", nil))
}

func (c *sessionController) Join(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req dto.JoinSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.SessionId = id
	if req.Role == "" {
		req.Role = "searcher"
	}

	res, err := c.registry.Join(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success join search session", res))
}

func (c *sessionController) Leave(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	if err := c.registry.Leave(ctx.Context(), id, userId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success leave search session", nil))
}

func (c *sessionController) Participants(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.registry.ListParticipants(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list participants", res))
}

func (c *sessionController) UpdateParticipant(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req dto.UpdateParticipantRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.SessionId = id

	res, err := c.registry.UpdateParticipant(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update participant", res))
}

// localUserId reads the authenticated user set by the JWT middleware.
func localUserId(ctx *fiber.Ctx) uuid.UUID {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	return userId
}
