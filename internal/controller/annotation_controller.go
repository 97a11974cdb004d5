package controller

import (
	"collabsearch-be/internal/dto"
	"collabsearch-be/internal/pkg/serverutils"
	"collabsearch-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAnnotationController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Resolve(ctx *fiber.Ctx) error
}

type annotationController struct {
	annotations service.IAnnotationService
}

func NewAnnotationController(annotations service.IAnnotationService) IAnnotationController {
	return &annotationController{
		annotations: annotations,
	}
}

func (c *annotationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/search-session/v1/:sessionId/annotation")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Put(":id", c.Update)
	h.Delete(":id", c.Delete)
	h.Post(":id/resolve", c.Resolve)
}

func (c *annotationController) Create(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req dto.CreateAnnotationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.SessionId = sessionId

	res, err := c.annotations.Create(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create annotation", res))
}

func (c *annotationController) List(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.annotations.ListForSession(ctx.Context(), sessionId, userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list annotations", res))
}

func (c *annotationController) Update(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req dto.UpdateAnnotationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.Id = id

	res, err := c.annotations.Update(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update annotation", res))
}

func (c *annotationController) Delete(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	if err := c.annotations.Delete(ctx.Context(), userId, id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete annotation", nil))
}

func (c *annotationController) Resolve(ctx *fiber.Ctx) error {
	userId := localUserId(ctx)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.annotations.Resolve(ctx.Context(), userId, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success resolve annotation", res))
}
