package api

import (
	"consultant/app/middleware"
	"consultant/model"
	"context"

	"github.com/gofiber/fiber/v2"
)

type IndexInfo interface {
	Count(ctx context.Context) (int, error)
	Identity() model.Identity
}

type CheckHandler struct {
	gate  *middleware.Gate
	index IndexInfo
}

func NewCheckHandler(gate *middleware.Gate, index IndexInfo) *CheckHandler {
	return &CheckHandler{gate: gate, index: index}
}

func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

// HandleReady reports whether /ask is being served, with index details.
func (h CheckHandler) HandleReady(c *fiber.Ctx) error {
	if !h.gate.Ready() {
		return ErrNotReady()
	}
	count, err := h.index.Count(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"result":    "ok",
		"chunks":    count,
		"embedding": h.index.Identity().String(),
	})
}
