package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Keys shared between the middleware chain and the handlers.
const (
	TraceIDHeader = "X-Trace-ID"
	TraceIDKey    = "trace_id"
	UserIDKey     = "user_id"

	requestContextKey = "request_context"
)

// RequestContext is the per-request record every error body and access log
// line draws from. Tracing replaces TraceID with the span's id and
// RequireAuth fills UserID.
type RequestContext struct {
	TraceID   string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext seeds the trace id from X-Trace-ID, or a fresh UUID, and
// stores the RequestContext.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqCtx := &RequestContext{
			TraceID:   c.GetHeader(TraceIDHeader),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if reqCtx.TraceID == "" {
			reqCtx.TraceID = uuid.NewString()
		}

		c.Set(requestContextKey, reqCtx)
		c.Set(TraceIDKey, reqCtx.TraceID)
		c.Header(TraceIDHeader, reqCtx.TraceID)

		c.Next()
	}
}

// GetTraceID returns the trace id of the current request, if any.
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

// GetRequestContext returns the RequestContext, or nil outside EnrichContext.
func GetRequestContext(c *gin.Context) *RequestContext {
	value, ok := c.Get(requestContextKey)
	if !ok {
		return nil
	}
	reqCtx, _ := value.(*RequestContext)
	return reqCtx
}
