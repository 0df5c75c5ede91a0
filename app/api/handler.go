package api

import (
	"consultant/types"
	"context"

	"github.com/gofiber/fiber/v2"
)

type Answerer interface {
	Answer(ctx context.Context, question string) (types.Answer, error)
}

type AskHandler struct {
	answerer Answerer
}

func NewAskHandler(answerer Answerer) *AskHandler {
	return &AskHandler{answerer: answerer}
}

func (h *AskHandler) HandleAsk(c *fiber.Ctx) error {
	var params types.AskRequest
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	answer, err := h.answerer.Answer(c.UserContext(), params.Question)
	if err != nil {
		return err
	}
	return c.JSON(types.NewAskResponse(answer))
}
