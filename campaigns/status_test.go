package campaigns_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/swishview/campaigns"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    campaigns.Status
		trigger campaigns.Trigger
		to      campaigns.Status
		ok      bool
	}{
		{campaigns.StatusPending, campaigns.TriggerPaymentConfirmed, campaigns.StatusActive, true},
		{campaigns.StatusPending, campaigns.TriggerEdit, campaigns.StatusPending, true},
		{campaigns.StatusActive, campaigns.TriggerPause, campaigns.StatusPaused, true},
		{campaigns.StatusPaused, campaigns.TriggerResume, campaigns.StatusActive, true},
		{campaigns.StatusActive, campaigns.TriggerComplete, campaigns.StatusCompleted, true},
		{campaigns.StatusPaused, campaigns.TriggerComplete, campaigns.StatusCompleted, true},
		{campaigns.StatusPending, campaigns.TriggerPause, "", false},
		{campaigns.StatusPending, campaigns.TriggerComplete, "", false},
		{campaigns.StatusActive, campaigns.TriggerPaymentConfirmed, "", false},
		{campaigns.StatusActive, campaigns.TriggerEdit, "", false},
		{campaigns.StatusPaused, campaigns.TriggerPaymentConfirmed, "", false},
		{campaigns.StatusCompleted, campaigns.TriggerResume, "", false},
		{campaigns.StatusCompleted, campaigns.TriggerPaymentConfirmed, "", false},
		{campaigns.StatusCompleted, campaigns.TriggerEdit, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.trigger), func(t *testing.T) {
			to, err := campaigns.Next(tt.from, tt.trigger)
			if !tt.ok {
				require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
				require.Equal(t, tt.from, to)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.to, to)
		})
	}
}

func TestOnlyPaymentActivatesPending(t *testing.T) {
	for _, trigger := range []campaigns.Trigger{campaigns.TriggerPause, campaigns.TriggerResume, campaigns.TriggerComplete, campaigns.TriggerEdit} {
		to, _ := campaigns.Next(campaigns.StatusPending, trigger)
		require.NotEqual(t, campaigns.StatusActive, to, trigger)
	}
	require.Equal(t, []campaigns.Trigger{campaigns.TriggerPaymentConfirmed, campaigns.TriggerEdit}, campaigns.Allowed(campaigns.StatusPending))
	require.Empty(t, campaigns.Allowed(campaigns.StatusCompleted))
}

func TestParseStatus(t *testing.T) {
	s, err := campaigns.ParseStatus("paused")
	require.NoError(t, err)
	require.Equal(t, campaigns.StatusPaused, s)

	_, err = campaigns.ParseStatus("Paused")
	require.ErrorIs(t, err, apperrors.ErrInvalidField)

	var c struct {
		Status campaigns.Status `json:"status"`
	}
	require.Error(t, json.Unmarshal([]byte(`{"status":"archived"}`), &c))
	require.NoError(t, json.Unmarshal([]byte(`{"status":"active"}`), &c))
	require.Equal(t, campaigns.StatusActive, c.Status)
}
