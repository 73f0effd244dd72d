package config

import "time"

type DeliveryConfig interface {
	GetDeliveryAPIKey() string
	GetCompletionSweepInterval() time.Duration
	GetFetchMaxAttempts() int
}

type Delivery struct{}

var _ DeliveryConfig = Delivery{}

func (Delivery) GetDeliveryAPIKey() string {
	return GetEnv("DELIVERY_API_KEY", "")
}

func (Delivery) GetCompletionSweepInterval() time.Duration {
	return GetEnvDuration("COMPLETION_SWEEP_INTERVAL", 1*time.Minute)
}

// GetFetchMaxAttempts bounds retries of the campaign list read.
func (Delivery) GetFetchMaxAttempts() int {
	return GetEnvInt("FETCH_MAX_ATTEMPTS", 3)
}
