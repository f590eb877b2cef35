package providers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/orchestra-mcp/realtime/src/reconnect"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers the status, manual reconnect and metrics routes.
// Activate must have been called first.
func (p *ClientPlugin) RegisterRoutes(group fiber.Router) {
	group.Get("/ws/status", p.handleStatus)
	group.Post("/ws/reconnect", p.handleReconnect)
	group.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})))
}

func (p *ClientPlugin) handleStatus(c fiber.Ctx) error {
	snap := p.service.Status()
	return c.JSON(fiber.Map{
		"active":     p.active,
		"generation": snap.Generation,
		"connection": snap.Connection,
		"error":      snap.Error,
		"reconnect":  snap.Reconnect,
		"sessions":   snap.Sessions,
	})
}

func (p *ClientPlugin) handleReconnect(c fiber.Ctx) error {
	err := p.service.Reconnect()
	switch {
	case errors.Is(err, reconnect.ErrNotRunning):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "not_running",
			"message": err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "reconnect_failed",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"reconnecting": true})
}
