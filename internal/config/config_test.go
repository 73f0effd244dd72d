package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/swishview/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("ADMIN_GATE_ENABLED", "")
	t.Setenv("MAX_VISITORS", "")
	t.Setenv("PAYMENT_CALLBACK_KEY", "")

	c := config.New()
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, time.Hour, c.GetSessionTTL())
	require.False(t, c.GetAdminGateEnabled())
	require.Equal(t, 3, c.GetFetchMaxAttempts())
	require.Equal(t, 10000, c.GetMaxVisitors())
	require.Empty(t, c.GetPaymentCallbackKey())
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("ADMIN_EMAILS", " admin@swishview.com, ,super@swishview.com")
	t.Setenv("PAYMENT_CONFIRMATION_TIMEOUT", "30s")
	t.Setenv("ADMIN_GATE_ENABLED", "true")
	t.Setenv("BASE_URL", "https://app.swishview.com/")
	t.Setenv("MAX_VISITORS", "250")
	t.Setenv("PAYMENT_PROCESSOR_URL", "https://pay.example.com/checkout")

	c := config.New()
	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, []string{"admin@swishview.com", "super@swishview.com"}, c.GetAdminEmails())
	require.Equal(t, 30*time.Second, c.GetPaymentConfirmationTimeout())
	require.True(t, c.GetAdminGateEnabled())
	require.Equal(t, "https://app.swishview.com", c.GetBaseURL())
	require.Equal(t, 250, c.GetMaxVisitors())
	require.Equal(t, "https://pay.example.com/checkout", c.GetPaymentProcessorURL())
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	require.Equal(t, time.Hour, config.New().GetSessionTTL())
}
