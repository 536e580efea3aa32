package logger

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CorrelationIDHeader names the response header carrying the request id.
const CorrelationIDHeader = "X-Correlation-ID"

const correlationContextKey = "boxstoreCorrelationID"

// Init builds the process logger. LOG_LEVEL selects the minimum level
// (debug, info, warn, error); production JSON encoding otherwise.
func Init() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// Middleware tags every request with a correlation id, keeping an inbound
// one when the client supplied it.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationContextKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

// CorrelationID returns the request's correlation id, empty when the
// middleware did not run.
func CorrelationID(c *gin.Context) string {
	return c.GetString(correlationContextKey)
}
