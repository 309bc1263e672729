package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGOURI", "mongodb://localhost:27017")
	t.Setenv("PAYSTACK_TEST_SECRET_KEY", "sk_test_abc")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "paystackdb", cfg.MongoDatabase)
	require.True(t, cfg.TestMode)
	require.Equal(t, "https://api.paystack.co", cfg.PaystackBaseURL)
	require.Equal(t, "completed", cfg.CompletedOrderStatus)
	require.Equal(t, 7, cfg.PendingCleanupDays)
}

func TestLoad_MissingMongoURI(t *testing.T) {
	t.Setenv("PAYSTACK_TEST_SECRET_KEY", "sk_test_abc")

	_, err := Load()
	require.Error(t, err)
}

func TestKeySelection_TestMode(t *testing.T) {
	cfg := &Config{
		TestMode:      true,
		TestSecretKey: "sk_test_abc",
		TestPublicKey: "pk_test_abc",
		LiveSecretKey: "sk_live_xyz",
		LivePublicKey: "pk_live_xyz",
	}

	require.Equal(t, "sk_test_abc", cfg.SecretKey())
	require.Equal(t, "pk_test_abc", cfg.PublicKey())

	cfg.TestMode = false
	require.Equal(t, "sk_live_xyz", cfg.SecretKey())
	require.Equal(t, "pk_live_xyz", cfg.PublicKey())
}

func TestValidate_RequiresActiveModeKey(t *testing.T) {
	cfg := &Config{
		TestMode:               false,
		TestSecretKey:          "sk_test_abc",
		PendingCleanupDays:     7,
		PendingCleanupInterval: 1,
	}

	// Only the test key is set but live mode is active.
	require.Error(t, cfg.Validate())

	cfg.LiveSecretKey = "sk_live_xyz"
	require.NoError(t, cfg.Validate())
}
