package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/nodeloom/loom/pkg/jobs"
	"github.com/nodeloom/loom/pkg/persistence"
	"github.com/nodeloom/loom/pkg/webhook"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleGatewayError maps trigger rejection reasons onto their HTTP
// statuses: 404 unknown/inactive, 405 method, 403 origin, 401 signature,
// 500 anything else.
func handleGatewayError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, webhook.ErrNotFound):
		return notFound(c, "webhook not found")

	case errors.Is(err, webhook.ErrMethodNotAllowed):
		problem := problems.NewStatusProblem(fiber.StatusMethodNotAllowed).
			WithInstance(c.Path()).
			WithType("method_not_allowed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusMethodNotAllowed).JSON(problem)

	case errors.Is(err, webhook.ErrOriginNotAllowed):
		problem := problems.NewStatusProblem(fiber.StatusForbidden).
			WithInstance(c.Path()).
			WithType("origin_not_allowed").
			WithDetail("source address is not in the allow-list")

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case errors.Is(err, webhook.ErrInvalidSignature):
		problem := problems.NewStatusProblem(fiber.StatusUnauthorized).
			WithInstance(c.Path()).
			WithType("invalid_signature").
			WithDetail("request signature did not match")

		return c.Status(fiber.StatusUnauthorized).JSON(problem)

	default:
		return internalError(c, err)
	}
}

// handleJobError maps job store errors; expiry and unknown ids are the same
// 404 on purpose.
func handleJobError(c fiber.Ctx, err error) error {
	if errors.Is(err, jobs.ErrJobNotFound) {
		return notFound(c, "job not found")
	}

	return internalError(c, err)
}

func handleGraphError(c fiber.Ctx, err error) error {
	if persistence.IsGraphNotFound(err) {
		return notFound(c, "graph not found")
	}

	return internalError(c, err)
}
