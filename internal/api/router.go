// Package api wires the gin HTTP mux that fronts the Event Gateway's
// websocket upgrade endpoint. Grounded on the teacher's SetupRouter
// (recovery/CORS/no-cache/logrus middleware stack, HEAD-probe convention),
// generalized from the teacher's filesystem/process/network/codegen/drive
// routes — none of which are in scope here — down to the one surface this
// system exposes over HTTP: the websocket handshake and a liveness probe.
package api

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wireterm/termstation/internal/gateway"
)

// SetupRouter configures the gin engine. disableRequestLogging skips the
// logrus access-log middleware; corsOrigin is forwarded to gin's CORS
// headers (the gateway's own websocket upgrader enforces it again at the
// handshake, via gateway.Config.CORSOrigin).
func SetupRouter(gw *gateway.Gateway, corsOrigin string, disableRequestLogging bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(corsMiddleware(corsOrigin))
	r.Use(noCacheMiddleware())
	r.Use(processingTimeMiddleware())

	if !disableRequestLogging {
		r.Use(logrusMiddleware())
	}

	head := headHandler()

	r.GET("/ws", func(c *gin.Context) { gw.ServeWS(c.Writer, c.Request) })
	r.HEAD("/ws", head)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/health", head)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "termstationd"})
	})

	return r
}

// corsMiddleware adds CORS headers to all responses. An empty or "*" origin
// permits any origin, matching the teacher's default-open CORS policy.
func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allow := origin
		if allow == "" {
			allow = "*"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allow)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// headHandler returns a simple 200 OK for HEAD requests to check endpoint existence.
func headHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Status(http.StatusOK)
	}
}

// noCacheMiddleware adds no-cache headers to all responses to prevent caching issues.
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Writer.Header().Set("Pragma", "no-cache")
		c.Writer.Header().Set("Expires", "0")
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}

// sensitiveQueryParams contains query parameter names that should be redacted from logs.
var sensitiveQueryParams = []string{
	"api_key", "apikey", "api-key",
	"token", "access_token", "refresh_token", "auth_token", "bearer",
	"password", "passwd", "pwd",
	"secret", "client_secret", "api_secret",
	"key", "private_key", "encryption_key",
	"authorization", "auth",
	"credential", "credentials",
	"session", "session_id", "sessionid",
	"jwt",
}

// redactSecrets redacts sensitive information from a URL path with query string.
func redactSecrets(pathWithQuery string) string {
	parts := strings.SplitN(pathWithQuery, "?", 2)
	if len(parts) != 2 {
		return pathWithQuery
	}

	basePath := parts[0]
	queryString := parts[1]

	values, err := url.ParseQuery(queryString)
	if err != nil {
		return redactQueryPatterns(pathWithQuery)
	}

	hasSecrets := false
	for _, param := range sensitiveQueryParams {
		if values.Get(param) != "" {
			hasSecrets = true
			break
		}
		for key := range values {
			if strings.EqualFold(key, param) {
				hasSecrets = true
				break
			}
		}
	}
	if !hasSecrets {
		return pathWithQuery
	}

	for key := range values {
		for _, param := range sensitiveQueryParams {
			if strings.EqualFold(key, param) {
				values.Set(key, "[REDACTED]")
				break
			}
		}
	}
	return basePath + "?" + values.Encode()
}

// redactQueryPatterns redacts secrets using regex patterns when URL parsing fails.
func redactQueryPatterns(pathWithQuery string) string {
	result := pathWithQuery
	for _, param := range sensitiveQueryParams {
		pattern := regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(param) + `=)[^&\s]*`)
		result = pattern.ReplaceAllString(result, "${1}[REDACTED]")
	}
	return result
}

func logrusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		sanitizedPath := redactSecrets(path)

		start := time.Now()
		c.Next()
		stop := time.Since(start)
		latency := int(math.Ceil(float64(stop.Nanoseconds()) / 1000000.0))
		statusCode := c.Writer.Status()
		dataLength := c.Writer.Size()
		if dataLength < 0 {
			dataLength = 0
		}

		if len(c.Errors) > 0 {
			logrus.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}
		msg := fmt.Sprintf("%s %s %d %d %dms", c.Request.Method, sanitizedPath, statusCode, dataLength, latency)
		switch {
		case statusCode >= http.StatusInternalServerError:
			logrus.Error(msg)
		case statusCode >= http.StatusBadRequest:
			logrus.Error(msg)
		default:
			logrus.Info(msg)
		}
	}
}
