package campaigns_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/swishview/campaigns"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	valid := map[string]campaigns.Money{
		"50":     5000,
		"50.5":   5050,
		"50.05":  5005,
		"0.99":   99,
		" 12.00": 1200,
	}
	for in, want := range valid {
		got, err := campaigns.ParseMoney(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "-5", "+5", "5.", ".5", "5.123", "1.2.3", "abc", "1e3"} {
		_, err := campaigns.ParseMoney(in)
		require.Error(t, err, in)
	}
}

func TestMoneyJSON(t *testing.T) {
	require.Equal(t, "50.00", campaigns.Dollars(50).String())

	b, err := json.Marshal(campaigns.Money(1234))
	require.NoError(t, err)
	require.JSONEq(t, `"12.34"`, string(b))

	var m campaigns.Money
	require.NoError(t, json.Unmarshal([]byte(`50`), &m))
	require.Equal(t, campaigns.Dollars(50), m)
	require.NoError(t, json.Unmarshal([]byte(`"7.5"`), &m))
	require.Equal(t, campaigns.Money(750), m)
	require.Error(t, json.Unmarshal([]byte(`-1`), &m))
}
