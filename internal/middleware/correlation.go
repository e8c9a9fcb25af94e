package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

// HeaderCorrelationID carries the correlation id on requests, responses and lifecycle events.
const HeaderCorrelationID = "X-Correlation-ID"

const maxCorrelationIDLength = 128

// CorrelationID middleware ensures every request carries a correlation identifier. Ids supplied by
// clients are reused when they are printable and short; anything else is replaced by a fresh UUID.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := strings.TrimSpace(c.Get(HeaderCorrelationID))
		if incoming == "" {
			incoming = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if !validCorrelationID(incoming) {
			incoming = uuid.NewString()
		}

		c.Locals("correlation_id", incoming)
		c.Set(HeaderCorrelationID, incoming)

		ctx := context.WithValue(c.Context(), correlationKey, incoming)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value := ctx.Value(correlationKey); value != nil {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if value := c.Locals("correlation_id"); value != nil {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return CorrelationIDFromContext(c.Context())
}

// RequestLogger returns base enriched with the request's correlation id and caller.
func RequestLogger(c *fiber.Ctx, base zerolog.Logger) *zerolog.Logger {
	logger := base
	if c == nil {
		return &logger
	}

	fields := base.With()
	if correlation := GetCorrelationID(c); correlation != "" {
		fields = fields.Str("correlation_id", correlation)
	}
	if userID := UserID(c); userID != 0 {
		fields = fields.Uint("user_id", userID)
	}
	logger = fields.Logger()
	return &logger
}
