package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/stakes/domain"
)

func authorize(t *testing.T, g *SandboxGateway, key string) *domain.PaymentIntent {
	t.Helper()
	intent, err := g.Authorize(context.Background(), domain.AuthorizeRequest{
		AmountMinor:    1000,
		Currency:       "usd",
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return intent
}

func TestSandboxAuthorizeIsIdempotentByKey(t *testing.T) {
	g := NewSandboxGateway(false)

	first := authorize(t, g, "k1")
	again := authorize(t, g, "k1")
	other := authorize(t, g, "")

	assert.Equal(t, first.ID, again.ID)
	assert.NotEqual(t, first.ID, other.ID)
	assert.NotEmpty(t, first.ClientSecret)
	assert.Equal(t, domain.PaymentStatusRequiresPaymentMethod, first.Status)
}

func TestSandboxAutoSucceed(t *testing.T) {
	g := NewSandboxGateway(true)
	intent := authorize(t, g, "")

	status, err := g.GetStatus(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSucceeded, status)
}

func TestSandboxGetStatusUnknownIntent(t *testing.T) {
	_, err := NewSandboxGateway(true).GetStatus(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, domain.ErrIntentNotFound)
}

func TestSandboxRefundOnceByKey(t *testing.T) {
	g := NewSandboxGateway(false)
	ctx := context.Background()
	intent := authorize(t, g, "")

	_, err := g.Refund(ctx, intent.ID, "refund-t1")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeRefundFailed), "nothing captured yet")

	require.NoError(t, g.SetStatus(intent.ID, domain.PaymentStatusSucceeded))

	refund, err := g.Refund(ctx, intent.ID, "refund-t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), refund.AmountMinor)

	replay, err := g.Refund(ctx, intent.ID, "refund-t1")
	require.NoError(t, err)
	assert.Equal(t, refund.ID, replay.ID)

	_, err = g.Refund(ctx, intent.ID, "refund-other")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeRefundFailed))
}

func TestSandboxCancel(t *testing.T) {
	g := NewSandboxGateway(false)
	ctx := context.Background()
	intent := authorize(t, g, "")

	require.NoError(t, g.Cancel(ctx, intent.ID))
	status, err := g.GetStatus(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCanceled, status)

	paid := NewSandboxGateway(true)
	settled := authorize(t, paid, "")
	err = paid.Cancel(ctx, settled.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
}

func TestSandboxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSandboxGateway(true).Authorize(ctx, domain.AuthorizeRequest{AmountMinor: 100, Currency: "usd"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeGatewayUnavailable))
}

func TestNewGatewaySelectsDriver(t *testing.T) {
	gw, err := NewGateway(configFor(DriverSandbox, ""), nil)
	require.NoError(t, err)
	assert.IsType(t, &SandboxGateway{}, gw)

	gw, err = NewGateway(configFor(DriverStripe, "sk_test_123"), nil)
	require.NoError(t, err)
	assert.IsType(t, &StripeGateway{}, gw)

	_, err = NewGateway(configFor(DriverStripe, ""), nil)
	assert.Error(t, err)

	_, err = NewGateway(configFor("paypal", ""), nil)
	assert.Error(t, err)
}
