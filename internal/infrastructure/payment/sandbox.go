package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/usecase"
)

type sandboxIntent struct {
	intent   domain.PaymentIntent
	refund   *domain.Refund
	refundBy string
}

// SandboxGateway is an in-process payment authority for local development.
// When autoSucceed is set, intents are reported as succeeded immediately,
// standing in for the payer-facing card collection step.
type SandboxGateway struct {
	mu          sync.Mutex
	autoSucceed bool
	intents     map[string]*sandboxIntent
	byKey       map[string]string
}

func NewSandboxGateway(autoSucceed bool) *SandboxGateway {
	return &SandboxGateway{
		autoSucceed: autoSucceed,
		intents:     make(map[string]*sandboxIntent),
		byKey:       make(map[string]string),
	}
}

func (g *SandboxGateway) Authorize(ctx context.Context, req domain.AuthorizeRequest) (*domain.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.GatewayUnavailable("authorize", err)
	}
	if req.AmountMinor <= 0 {
		return nil, domain.ValidationError("amount must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if req.IdempotencyKey != "" {
		if id, ok := g.byKey[req.IdempotencyKey]; ok {
			intent := g.intents[id].intent
			return &intent, nil
		}
	}

	id := "pi_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	status := domain.PaymentStatusRequiresPaymentMethod
	if g.autoSucceed {
		status = domain.PaymentStatusSucceeded
	}
	entry := &sandboxIntent{intent: domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Status:       status,
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
	}}
	g.intents[id] = entry
	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = id
	}

	intent := entry.intent
	return &intent, nil
}

func (g *SandboxGateway) GetStatus(ctx context.Context, intentID string) (domain.PaymentStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.GatewayUnavailable("status lookup", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.intents[intentID]
	if !ok {
		return "", domain.ErrIntentNotFound
	}
	return entry.intent.Status, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, intentID, idempotencyKey string) (*domain.Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.GatewayUnavailable("refund", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.intents[intentID]
	if !ok {
		return nil, domain.NewError(domain.ErrCodeRefundFailed, "no such payment intent: "+intentID)
	}
	if entry.refund != nil {
		if idempotencyKey != "" && idempotencyKey == entry.refundBy {
			refund := *entry.refund
			return &refund, nil
		}
		return nil, domain.NewError(domain.ErrCodeRefundFailed, "charge has already been refunded")
	}
	if entry.intent.Status != domain.PaymentStatusSucceeded {
		return nil, domain.NewError(domain.ErrCodeRefundFailed,
			fmt.Sprintf("payment intent %s has no successful charge (status %s)", intentID, entry.intent.Status))
	}

	entry.refund = &domain.Refund{
		ID:          "re_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		AmountMinor: entry.intent.AmountMinor,
		Status:      "succeeded",
	}
	entry.refundBy = idempotencyKey
	refund := *entry.refund
	return &refund, nil
}

func (g *SandboxGateway) Cancel(ctx context.Context, intentID string) error {
	if err := ctx.Err(); err != nil {
		return domain.GatewayUnavailable("cancel", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.intents[intentID]
	if !ok {
		return domain.ErrIntentNotFound
	}
	if entry.intent.Status == domain.PaymentStatusSucceeded {
		return domain.NewError(domain.ErrCodeConflict, "cannot cancel a succeeded payment intent")
	}
	entry.intent.Status = domain.PaymentStatusCanceled
	return nil
}

// SetStatus simulates the payer completing (or failing) the payment step.
func (g *SandboxGateway) SetStatus(intentID string, status domain.PaymentStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.intents[intentID]
	if !ok {
		return domain.ErrIntentNotFound
	}
	entry.intent.Status = status
	return nil
}

var _ usecase.PaymentGateway = (*SandboxGateway)(nil)
