package utils

import (
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"

	"blicktrack/config"
)

// InitStripe sets the API key once at startup
func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

// CreatePlanPaymentIntent creates a payment intent for a plan purchase. The
// tenant, plan and transaction IDs ride in metadata so the webhook can apply
// the plan once payment succeeds.
func CreatePlanPaymentIntent(amount int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	return paymentintent.New(params)
}

// ConstructWebhookEvent verifies the Stripe signature and parses the event
func ConstructWebhookEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, config.AppConfig.StripeWebhookSecret)
}
