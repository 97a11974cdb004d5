package serverutils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"collabsearch-be/internal/pkg/apperrors"
)

// ErrorHandlerMiddleware converts AppError values returned by controllers
// into JSON responses. Unknown errors become 500s without leaking internals.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		if appErr, ok := apperrors.As(err); ok {
			body := ErrorBody{
				Code:    string(appErr.Code),
				Message: appErr.Message,
			}
			if appErr.ConflictId != uuid.Nil {
				body.Details = fiber.Map{"conflict_id": appErr.ConflictId}
			}
			return ctx.Status(appErr.HTTPStatus()).JSON(body)
		}

		if fiberErr, ok := err.(*fiber.Error); ok {
			return ctx.Status(fiberErr.Code).JSON(ErrorBody{
				Code:    "HTTP_ERROR",
				Message: fiberErr.Message,
			})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorBody{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		})
	}
}
