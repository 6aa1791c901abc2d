package httpserver

import (
	"errors"
	"strings"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	identityKey     = "identity"
)

// requestLogger stamps every request with an id and logs it once it completes.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		reqLogger := logger.With(zap.String("request_id", requestID))
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), reqLogger))

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			reqLogger.Error("request", fields...)
			return
		}
		reqLogger.Info("request", fields...)
	}
}

// authMiddleware resolves the bearer token to an identity or aborts with 401.
func authMiddleware(tokens tokenLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			writeError(c, domain.ErrAuthRequired)
			c.Abort()
			return
		}
		tok, err := tokens.Get(c.Request.Context(), raw)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && !tok.ExpiresAt.IsZero() && time.Now().After(tok.ExpiresAt)) {
			writeError(c, domain.ErrAuthRequired)
			c.Abort()
			return
		}
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(identityKey, domain.Identity{SubjectID: tok.SubjectID, Role: tok.Role})
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func identityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if who, ok := v.(domain.Identity); ok {
			return who
		}
	}
	return domain.Identity{}
}
