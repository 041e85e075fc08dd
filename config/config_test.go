package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveNetworkDefaultsToMainNet(t *testing.T) {
	cfg := defaults()
	require.NoError(t, resolveNetwork(cfg))
	require.Equal(t, "mainnet", cfg.NetParams().Name)
}

func TestResolveNetworkSimNet(t *testing.T) {
	cfg := defaults()
	cfg.SimNet = true
	require.NoError(t, resolveNetwork(cfg))
	require.Equal(t, "simnet", cfg.NetParams().Name)
}

func TestResolveNetworkRejectsBothTestNetAndSimNet(t *testing.T) {
	cfg := defaults()
	cfg.TestNet = true
	cfg.SimNet = true
	require.Error(t, resolveNetwork(cfg))
}
