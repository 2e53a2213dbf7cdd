// Package payment provides PaymentGateway implementations: Stripe for real
// money and an in-process sandbox for development.
package payment

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/stakes/internal/config"
	"github.com/fastygo/stakes/usecase"
)

const (
	DriverStripe  = "stripe"
	DriverSandbox = "sandbox"
)

// NewGateway selects the gateway implementation configured for this process.
func NewGateway(cfg config.PaymentConfig, logger *zap.Logger) (usecase.PaymentGateway, error) {
	switch cfg.Driver {
	case DriverStripe:
		return NewStripeGateway(cfg.SecretKey, int64(cfg.MaxNetworkRetries), logger)
	case DriverSandbox, "":
		return NewSandboxGateway(cfg.SandboxAutoSucceed), nil
	default:
		return nil, fmt.Errorf("unknown payment driver %q", cfg.Driver)
	}
}
