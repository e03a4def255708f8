package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"vlab-server/backend/utils"
)

func LoggingMiddleware(logger *log.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()
		latency := time.Since(start)
		ip := c.IP()
		userAgent := c.Get("User-Agent")

		var statusColor, methodColor, resetColor string
		if logger.Flags()&log.Lmsgprefix == 0 {
			statusColor = utils.StatusColor(status)
			methodColor = utils.MethodColor(method)
			resetColor = "\033[0m"
		}

		logger.Printf("%s %s%s%s %s %s%d%s %s %s",
			ip,
			methodColor, method, resetColor,
			path,
			statusColor, status, resetColor,
			latency,
			userAgent,
		)

		return err
	}
}
