package middleware

import (
	"fmt"
	"math"

	"codoleet/internal/admission"
	"codoleet/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware applies the injected sliding-window limiter keyed by
// client address. Requests over the limit are rejected immediately with 429;
// nothing is queued or delayed.
func RateLimitMiddleware(limiter *admission.SlidingWindow) gin.HandlerFunc {
	return func(c *gin.Context) {
		retryAfter, err := limiter.Allow(c.ClientIP())
		if err != nil {
			if retryAfter > 0 {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			}
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
