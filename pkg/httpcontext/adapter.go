package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/stakes/pkg/logger"
)

const HeaderRequestID = "X-Request-ID"

// userValueKey holds the authenticated user id. It is only ever written by the
// auth middleware, never read from client headers.
const userValueKey = "auth.user_id"

// Adapter turns a fasthttp.RequestCtx into a context.Context bounded by the
// request timeout and carrying the request and user ids for logging.
type Adapter struct {
	timeout time.Duration
}

func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

func (a *Adapter) Timeout() time.Duration {
	return a.timeout
}

// Attach derives the request context. The request id is echoed back on the response.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := RequestID(ctx)
	ctx.Response.Header.Set(HeaderRequestID, reqID)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)

	if userID := UserID(ctx); userID != "" {
		stdCtx = appLogger.ContextWithUserID(stdCtx, userID)
	}
	return stdCtx, cancel
}

// RequestID returns the caller-supplied request id or generates one. A
// generated id is pinned on the request so later calls agree.
func RequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if header := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderRequestID))); header != "" {
		return header
	}
	id := uuid.NewString()
	ctx.Request.Header.Set(HeaderRequestID, id)
	return id
}

func SetUserID(ctx *fasthttp.RequestCtx, userID string) {
	ctx.SetUserValue(userValueKey, userID)
}

func UserID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.UserValue(userValueKey).(string)
	return id
}
