package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "false")
	t.Setenv("LEDGER_CHAIN_ID", "137")
	t.Setenv("LEDGER_CONFIRM_TIMEOUT_SEC", "30")
	t.Setenv("STORE_ALLOWED_TYPES", "application/pdf, text/plain")
	t.Setenv("APP_ENV", "production")
	t.Setenv("INSTITUTIONS_FILE", "/etc/thesiscert/institutions.json")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.Store.MinIO.UseSSL)
	assert.Equal(t, int64(137), cfg.Ledger.ChainID)
	assert.Equal(t, 30*time.Second, cfg.Ledger.ConfirmTimeout)
	assert.Equal(t, []string{"application/pdf", "text/plain"}, cfg.Store.AllowedTypes)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/etc/thesiscert/institutions.json", cfg.InstitutionsFile)
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"STORE_MAX_UPLOAD_BYTES", "LEDGER_CHAIN_ID", "CERTIFY_ROLES", "STORE_ALLOWED_TYPES", "APP_ENV"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, int64(25*1024*1024), cfg.Store.MaxUploadBytes)
	assert.Equal(t, int64(80002), cfg.Ledger.ChainID)
	assert.Equal(t, "admin,institution_admin", cfg.Policy.CertifyRoles)
	assert.Len(t, cfg.Store.AllowedTypes, 3)
	assert.False(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvList(t *testing.T) {
	key := "TEST_LIST_VAR"
	def := []string{"a"}

	t.Setenv(key, " x , ,y ")
	assert.Equal(t, []string{"x", "y"}, getEnvList(key, def))

	t.Setenv(key, " , ")
	assert.Equal(t, def, getEnvList(key, def))
}
