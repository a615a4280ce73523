package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, "otps", cfg.DynamoTables.OTPs)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_ShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadFile_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
app_port: "8080"
jwt_secret: "` + testSecret + `"
otp_ttl: 5m
dynamo_tables:
  exams: yaml_exams
allowed_origins: ["https://a.example"]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0600))
	t.Setenv("APP_PORT", "9090")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, "yaml_exams", cfg.DynamoTables.Exams)
	assert.Equal(t, "users", cfg.DynamoTables.Users)
	assert.Equal(t, []string{"https://a.example"}, cfg.AllowedOrigins)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("X_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("X_DURATION", time.Minute))
}
