package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"ms-booking/internal/models"
)

// PaymentClient is the payment collaborator contract. Intents are
// created with an idempotency key derived from the hold, so a retried
// checkout reaches the same intent instead of charging twice.
type PaymentClient interface {
	CreateIntent(ctx context.Context, amount float64, currency, idempotencyKey string, metadata map[string]string) (string, error)
	Confirm(ctx context.Context, intentRef, paymentMethod string) (models.PaymentStatus, error)
}

// StripeClient implements PaymentClient on Stripe payment intents.
type StripeClient struct{}

// InitStripe sets the API key for the package-level Stripe clients.
func InitStripe(secretKey string) {
	stripe.Key = secretKey
}

func (c *StripeClient) CreateIntent(ctx context.Context, amount float64, currency, idempotencyKey string, metadata map[string]string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount * 100)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return intent.ID, nil
}

func (c *StripeClient) Confirm(ctx context.Context, intentRef, paymentMethod string) (models.PaymentStatus, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if paymentMethod != "" {
		params.PaymentMethod = stripe.String(paymentMethod)
	}

	intent, err := paymentintent.Confirm(intentRef, params)
	if err != nil {
		// A declined card comes back as an error from Stripe; the caller
		// maps it to a recoverable payment failure.
		return models.PaymentFailed, nil
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return models.PaymentSucceeded, nil
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresAction:
		// Final status arrives via webhook.
		return models.PaymentPending, nil
	default:
		return models.PaymentFailed, nil
	}
}
