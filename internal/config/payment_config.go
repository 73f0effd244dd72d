package config

import "time"

type PaymentConfig interface {
	GetPaymentSigningKey() string
	GetPaymentConfirmationTimeout() time.Duration
	GetPaymentCallbackKey() string
	GetPaymentProcessorURL() string
}

type Payment struct{}

var _ PaymentConfig = Payment{}

func (Payment) GetPaymentSigningKey() string {
	return GetEnv("PAYMENT_SIGNING_KEY", "")
}

func (Payment) GetPaymentConfirmationTimeout() time.Duration {
	return GetEnvDuration("PAYMENT_CONFIRMATION_TIMEOUT", 2*time.Minute)
}

// GetPaymentCallbackKey is shared with the payment provider and guards the confirmation callback.
func (Payment) GetPaymentCallbackKey() string {
	return GetEnv("PAYMENT_CALLBACK_KEY", "")
}

// GetPaymentProcessorURL is the provider's checkout endpoint that receives new intents.
func (Payment) GetPaymentProcessorURL() string {
	return GetEnv("PAYMENT_PROCESSOR_URL", "")
}
