package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zoneledger/backend/internal/interfaces/http/dto"
)

// BodyLimit rejects request bodies larger than maxBytes. Transfer and
// zone-control payloads are small, so the limit mostly guards against
// oversized spool replay or incident action bodies.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodePayloadTooLarge, "Request body exceeds maximum allowed size"))
			return
		}

		// Content-Length can lie or be absent on chunked requests
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
