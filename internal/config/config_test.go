package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "auth")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_NAME", "auth")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "15m", want: 15 * time.Minute},
		{in: "1h", want: time.Hour},
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: " 30s ", want: 30 * time.Second},
		{in: "", wantErr: true},
		{in: "xd", wantErr: true},
		{in: "0d", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "week", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromViperDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.GreaterOrEqual(t, cfg.BcryptConcurrency, 1)
	assert.Equal(t, "auth.audit", cfg.AuditQueue)
	assert.True(t, cfg.Cache.Methods["GET"])
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestFromViperOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_ACCESS_EXPIRES_IN", "5m")
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "30d")
	t.Setenv("RABBITMQ_URL", "amqp://guest:guest@mq:5672/")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.AMQPURL)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestFromViperReportsEveryProblem(t *testing.T) {
	v := viper.New()
	v.Set("APP_ENV", "staging")
	v.Set("JWT_SECRET", "short")
	v.Set("JWT_ACCESS_EXPIRES_IN", "soon")
	v.Set("JWT_REFRESH_EXPIRES_IN", "7d")
	v.Set("RESET_TOKEN_TTL", "1h")
	v.Set("BCRYPT_ROUNDS", 10)

	_, err := FromViper(v)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DB_USER")
	assert.Contains(t, msg, "DB_HOST")
	assert.Contains(t, msg, "DB_NAME")
	assert.Contains(t, msg, "JWT_SECRET must be at least")
	assert.Contains(t, msg, "JWT_ACCESS_EXPIRES_IN")
	assert.Contains(t, msg, "APP_ENV")
}
