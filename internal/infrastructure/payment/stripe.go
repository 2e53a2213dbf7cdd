package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/usecase"
)

// StripeGateway talks to Stripe through an explicitly constructed client; no
// package-level key is ever set.
type StripeGateway struct {
	api    *client.API
	logger *zap.Logger
}

// NewStripeGateway builds a client with its own backends and zap-backed logging.
func NewStripeGateway(secretKey string, maxNetworkRetries int64, logger *zap.Logger) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	backendCfg := &stripe.BackendConfig{
		LeveledLogger:     logger.Named("stripe").Sugar(),
		MaxNetworkRetries: stripe.Int64(maxNetworkRetries),
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	return &StripeGateway{
		api:    client.New(secretKey, backends),
		logger: logger,
	}, nil
}

func (g *StripeGateway) Authorize(ctx context.Context, req domain.AuthorizeRequest) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify("authorize", err)
	}

	status, err := domain.ParsePaymentStatus(string(pi.Status))
	if err != nil {
		return nil, domain.GatewayUnavailable("authorize", err)
	}
	if pi.ID == "" || pi.ClientSecret == "" {
		return nil, domain.GatewayUnavailable("authorize", errors.New("incomplete payment intent"))
	}

	return &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       status,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (g *StripeGateway) GetStatus(ctx context.Context, intentID string) (domain.PaymentStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return "", classify("status lookup", err)
	}
	status, err := domain.ParsePaymentStatus(string(pi.Status))
	if err != nil {
		return "", domain.GatewayUnavailable("status lookup", err)
	}
	return status, nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID, idempotencyKey string) (*domain.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		if classified := classify("refund", err); domain.IsDomainError(classified, domain.ErrCodeGatewayUnavailable) {
			return nil, classified
		}
		return nil, domain.WrapError(domain.ErrCodeRefundFailed, "refund failed", err)
	}
	if r.Status == stripe.RefundStatusFailed || r.Status == stripe.RefundStatusCanceled {
		return nil, domain.NewError(domain.ErrCodeRefundFailed, "refund "+string(r.Status))
	}

	return &domain.Refund{
		ID:          r.ID,
		AmountMinor: r.Amount,
		Status:      string(r.Status),
	}, nil
}

func (g *StripeGateway) Cancel(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return classify("cancel", err)
	}
	return nil
}

// classify maps Stripe failures onto the domain taxonomy.
func classify(op string, err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return domain.GatewayUnavailable(op, err)
	}

	switch {
	case stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound:
		return domain.WrapError(domain.ErrCodeNotFound, domain.ErrIntentNotFound.Message, err)
	case stripeErr.Code == stripe.ErrorCodeAmountTooSmall || stripeErr.Code == stripe.ErrorCodeAmountTooLarge:
		return domain.WrapError(domain.ErrCodeValidation, "amount rejected by payment gateway", err)
	default:
		return domain.GatewayUnavailable(op, err)
	}
}

var _ usecase.PaymentGateway = (*StripeGateway)(nil)
