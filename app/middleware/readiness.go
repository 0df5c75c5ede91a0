package middleware

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
)

// Gate is a publish-once readiness flag. It is opened after the index is
// built and closed again when the server starts shutting down.
type Gate struct {
	ready atomic.Bool
}

func (g *Gate) Open()       { g.ready.Store(true) }
func (g *Gate) Close()      { g.ready.Store(false) }
func (g *Gate) Ready() bool { return g.ready.Load() }

// RequireReady answers 503 while the gate is closed.
func RequireReady(g *Gate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !g.Ready() {
			return fiber.NewError(fiber.StatusServiceUnavailable, "service is not ready")
		}
		return c.Next()
	}
}
