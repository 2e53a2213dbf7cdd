package router

import (
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/stakes/api/handler"
	"github.com/fastygo/stakes/pkg/httpcontext"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
}

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

func New(handlers Handlers, auth Middleware, logger *zap.Logger) fasthttp.RequestHandler {
	r := router.New()
	r.RedirectTrailingSlash = false

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api/v1")

	api.POST("/auth/register", handlers.Auth.Register)
	api.POST("/auth/login", handlers.Auth.Login)

	api.GET("/profile", auth(handlers.Profile.GetProfile))

	api.GET("/tasks", auth(handlers.Task.GetTasks))
	api.POST("/tasks", auth(handlers.Task.CreateTask))
	api.GET("/tasks/{id}", auth(handlers.Task.GetTask))
	api.POST("/tasks/{id}/confirm-payment", auth(handlers.Task.ConfirmPayment))
	api.POST("/tasks/{id}/complete", auth(handlers.Task.CompleteTask))
	api.GET("/tasks/{id}/events", auth(handlers.Task.GetEvents))

	return accessLog(r.Handler, logger)
}

func accessLog(next fasthttp.RequestHandler, logger *zap.Logger) fasthttp.RequestHandler {
	if logger == nil {
		return next
	}
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		logger.Info("http request",
			zap.String("request_id", httpcontext.RequestID(ctx)),
			zap.String("method", string(ctx.Method())),
			zap.String("path", string(ctx.Path())),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
