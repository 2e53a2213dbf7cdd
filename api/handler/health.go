package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/stakes/api/transport"
	"github.com/fastygo/stakes/internal/infrastructure/monitor"
	"github.com/fastygo/stakes/pkg/httpcontext"
)

// StatusSource reports dependency health.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusSource
}

func NewHealthHandler(mon StatusSource, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

type journalHealth struct {
	Online  bool `json:"online"`
	Backlog int  `json:"backlog"`
}

type dependencyHealth struct {
	PostgreSQL bool          `json:"postgresql"`
	Redis      bool          `json:"redis"`
	Journal    journalHealth `json:"journal"`
}

type healthReport struct {
	CheckedAt time.Time         `json:"checked_at"`
	Services  dependencyHealth  `json:"services"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	report := healthReport{
		CheckedAt: status.LastCheck,
		Services: dependencyHealth{
			PostgreSQL: status.PostgreSQL,
			Redis:      status.Redis,
			Journal:    journalHealth{Online: status.Journal, Backlog: status.JournalBacklog},
		},
		Errors: status.Errors,
	}

	if !status.Healthy() {
		h.respondJSON(ctx, http.StatusServiceUnavailable,
			transport.NewError("DEGRADED", transport.ErrorBody{Message: "dependencies unhealthy"}, report))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}
