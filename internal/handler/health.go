package handler

import (
	"readly/internal/dto"

	"github.com/gofiber/fiber/v2"
)

// Heartbeat godoc
// @Summary Liveness probe
// @Description Always reports ONLINE while the process is serving requests
// @Tags health
// @Produce json
// @Success 200 {object} dto.HeartbeatResponse
// @Router /heartbeat [get]
func Heartbeat(c *fiber.Ctx) error {
	return c.JSON(dto.HeartbeatResponse{
		Status:  "ONLINE",
		Message: "Service endpoints are currently available.",
	})
}
