package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: test-secret
mysql:
  host: 127.0.0.1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.EqualValues(t, 1, cfg.Server.WorkerID)
	assert.Equal(t, "127.0.0.1", cfg.MySQL.Host)
	assert.Equal(t, "marketplace.notification", cfg.Kafka.Topic.Notification)
	assert.Equal(t, 5, cfg.Business.MaxRetryCount)
	assert.Equal(t, "100", cfg.Business.MinWithdrawal().String())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: file-secret
business:
  min_withdrawal_amount: "250"
`)
	t.Setenv("FREELANCEPAY_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "250", cfg.Business.MinWithdrawal().String())
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestMinWithdrawal_Fallback(t *testing.T) {
	b := BusinessConfig{MinWithdrawalAmount: "not-a-number"}
	assert.Equal(t, "100", b.MinWithdrawal().String())
}
