package app

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// corsMiddleware allows credentialed requests from the configured site origin only.
func corsMiddleware(siteURL string) gin.HandlerFunc {
	allowed := ""
	if parsed, errParse := url.Parse(siteURL); errParse == nil && parsed.Scheme != "" && parsed.Host != "" {
		allowed = parsed.Scheme + "://" + parsed.Host
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || origin != allowed {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
