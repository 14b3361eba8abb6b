package context

import (
	"strings"

	"github.com/gin-gonic/gin"
)

func RequestIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if ctx := c.Request.Context(); ctx != nil {
		if value := RequestIDFromContext(ctx); value != "" {
			return value
		}
	}
	return strings.TrimSpace(c.GetString("request_id"))
}

func CorrelationIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return CorrelationIDFromContext(c.Request.Context())
}
