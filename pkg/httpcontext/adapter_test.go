package httpcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/stakes/pkg/logger"
)

func TestAttachPropagatesRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.Header.Set(HeaderRequestID, "req-42")
	SetUserID(&rc, "user-1")

	ctx, cancel := NewAdapter(time.Second).Attach(&rc)
	defer cancel()

	assert.Equal(t, "req-42", appLogger.RequestIDFromContext(ctx))
	assert.Equal(t, "req-42", string(rc.Response.Header.Peek(HeaderRequestID)))
	assert.Equal(t, "user-1", UserID(&rc))

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
}

func TestRequestIDIsGeneratedOnce(t *testing.T) {
	var rc fasthttp.RequestCtx

	first := RequestID(&rc)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, RequestID(&rc))
}

func TestUserIDIgnoresHeaders(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.Header.Set("X-User-ID", "spoofed")
	assert.Empty(t, UserID(&rc))
}
