package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/stakes/api/transport"
	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/pkg/httpcontext"
	appLogger "github.com/fastygo/stakes/pkg/logger"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"status":"error","code":"INTERNAL","error":{"message":"internal error"}}`)
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondFail(ctx *fasthttp.RequestCtx, status int, code domain.ErrorCode, message string) {
	h.respondJSON(ctx, status, transport.NewError(string(code), transport.ErrorBody{Message: message}, nil))
}

// respondError renders err through the domain taxonomy. Unclassified errors
// are logged and reported as INTERNAL without their text.
func (h baseHandler) respondError(stdCtx context.Context, ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	message := "internal error"

	var dErr *domain.Error
	if errors.As(err, &dErr) {
		message = dErr.Message
	}

	log := appLogger.FromContext(stdCtx, h.logger).With(
		zap.String("method", string(ctx.Method())),
		zap.String("path", string(ctx.Path())),
		zap.String("code", string(code)),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Debug("request rejected")
	}

	h.respondFail(ctx, status, code, message)
}

func (h baseHandler) decode(ctx *fasthttp.RequestCtx, dst interface{}) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		h.respondFail(ctx, http.StatusBadRequest, domain.ErrCodeValidation, domain.ErrInvalidPayload.Message)
		return false
	}
	return true
}

// userID returns the authenticated caller or writes a 401.
func (h baseHandler) userID(ctx *fasthttp.RequestCtx) (string, bool) {
	userID := httpcontext.UserID(ctx)
	if userID == "" {
		h.respondFail(ctx, http.StatusUnauthorized, domain.ErrCodeUnauthenticated, domain.ErrUnauthenticated.Message)
		return "", false
	}
	return userID, true
}

func mapError(err error) (int, domain.ErrorCode) {
	code := domain.CodeOf(err)
	switch code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest, code
	case domain.ErrCodeUnauthenticated:
		return http.StatusUnauthorized, code
	case domain.ErrCodeUnauthorized:
		return http.StatusForbidden, code
	case domain.ErrCodeNotFound:
		return http.StatusNotFound, code
	case domain.ErrCodeInvalidTransition, domain.ErrCodeConcurrentModification, domain.ErrCodeConflict:
		return http.StatusConflict, code
	case domain.ErrCodePaymentNotCompleted:
		return http.StatusPaymentRequired, code
	case domain.ErrCodeGatewayUnavailable:
		return http.StatusServiceUnavailable, code
	default:
		return http.StatusInternalServerError, domain.ErrCodeInternal
	}
}
