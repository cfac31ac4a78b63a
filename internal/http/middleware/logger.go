package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorLocalKey holds the internal error behind a 5xx response so it is logged
// without being sent to the client.
const ErrorLocalKey = "error"

// Logger writes one structured access log entry per request with request_id,
// method, path, status and latency_ms. 5xx responses log at error level and
// 4xx at warn.
func Logger(logger *zap.Logger) fiber.Handler {
	logger = logger.With(zap.String("component", "http"))

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				c.Locals(ErrorLocalKey, err)
			}
		}

		fields := []zap.Field{
			zap.String("request_id", RequestIDFrom(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
		}
		if a, ok := actorFromLocals(c); ok {
			fields = append(fields, zap.String("actor_id", a.ID))
		}
		if cause, ok := c.Locals(ErrorLocalKey).(error); ok {
			fields = append(fields, zap.Error(cause))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("http request", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}

		return err
	}
}
