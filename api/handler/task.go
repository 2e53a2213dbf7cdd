package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/stakes/api/transport"
	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/pkg/httpcontext"
	"github.com/fastygo/stakes/repository"
	taskUC "github.com/fastygo/stakes/usecase/task"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
	defaultPageSize      = 50
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List the caller's tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	filter := repository.TaskFilter{
		OwnerID: userID,
		Limit:   parseInt(string(ctx.QueryArgs().Peek("limit")), defaultPageSize),
		Offset:  parseInt(string(ctx.QueryArgs().Peek("offset")), 0),
	}
	if raw := string(ctx.QueryArgs().Peek("status")); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			h.respondFail(ctx, http.StatusBadRequest, domain.ErrCodeValidation, "unknown status filter")
			return
		}
		filter.Status = status
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, filter)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(tasks, transport.ListMeta{
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Count:  len(tasks),
	}))
}

// @Summary Create a task and authorize its stake
// @Tags tasks
// @Param Idempotency-Key header string false "replay protection"
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	var req transport.CreateTaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	due, ok := req.ParseDueDate()
	if !ok {
		h.respondFail(ctx, http.StatusBadRequest, domain.ErrCodeValidation, "dueDate must be an RFC3339 timestamp or YYYY-MM-DD date")
		return
	}
	key := strings.TrimSpace(string(ctx.Request.Header.Peek(headerIdempotencyKey)))
	if len(key) > maxIdempotencyKeyLen {
		h.respondFail(ctx, http.StatusBadRequest, domain.ErrCodeValidation, "Idempotency-Key is too long")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.CreateTask(stdCtx, taskUC.CreateTaskInput{
		OwnerID:        userID,
		Title:          req.Title,
		Description:    req.Description,
		DueDate:        due,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
		ctx.Response.Header.Set("Idempotent-Replayed", "true")
	}
	h.respondSuccess(ctx, status, result)
}

// @Summary Get one of the caller's tasks
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, userID, pathID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.TaskPayload{Task: task})
}

// @Summary Activate a task once its payment succeeded
// @Tags tasks
// @Router /api/v1/tasks/{id}/confirm-payment [post]
func (h *TaskHandler) ConfirmPayment(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	var req transport.ConfirmPaymentRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.ConfirmPayment(stdCtx, userID, pathID(ctx), req.PaymentIntentID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.TaskPayload{Task: task})
}

// @Summary Complete a task, refunding the stake when on time
// @Tags tasks
// @Router /api/v1/tasks/{id}/complete [post]
func (h *TaskHandler) CompleteTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.CompleteTask(stdCtx, userID, pathID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Audit trail of a task
// @Tags tasks
// @Router /api/v1/tasks/{id}/events [get]
func (h *TaskHandler) GetEvents(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.uc.ListEvents(stdCtx, userID, pathID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}

func pathID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
