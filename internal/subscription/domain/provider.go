package domain

import (
	"fmt"
	"strings"
)

// PaymentProvider identifies who collected payment for a subscription.
type PaymentProvider string

const (
	ProviderNone     PaymentProvider = "none"
	ProviderRazorpay PaymentProvider = "razorpay"
	ProviderStripe   PaymentProvider = "stripe"
	ProviderPayPal   PaymentProvider = "paypal"
)

// AutoDowngradePaymentID marks subscriptions created by the expiry sweep.
const AutoDowngradePaymentID = "auto-downgrade"

// IsValid reports whether p is a known provider.
func (p PaymentProvider) IsValid() bool {
	switch p {
	case ProviderNone, ProviderRazorpay, ProviderStripe, ProviderPayPal:
		return true
	default:
		return false
	}
}

// ParsePaymentProvider parses a provider name case-insensitively.
// An empty string means no provider.
func ParsePaymentProvider(s string) (PaymentProvider, error) {
	if s == "" {
		return ProviderNone, nil
	}
	p := PaymentProvider(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentProvider, s)
	}
	return p, nil
}
