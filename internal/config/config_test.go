package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("TRACKING_INTERVAL", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.StorageDriver)
	assert.Equal(t, 30*time.Second, cfg.TrackingInterval)
	assert.Equal(t, time.Duration(0), cfg.APITimeout)
	assert.Nil(t, cfg.KafkaBrokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PAYMENT_SETTLE_DELAY", "500ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DB_PORT", "6543")

	cfg := Load()
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.PaymentSettleDelay)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 6543, cfg.DB.Port)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("TRACKING_INTERVAL", "soon")

	cfg := Load()
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 30*time.Second, cfg.TrackingInterval)
}

func TestValidate_RequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	cfg := Load()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingSessionSecret)

	t.Setenv("SESSION_SECRET", "s3cret")
	assert.NoError(t, Load().Validate())
}
