package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"CHAINCODE_SERVER_ADDRESS", "CHAINCODE_ID", "CHAINCODE_TLS_DISABLED",
		"CHAINCODE_TLS_KEY_FILE", "CHAINCODE_TLS_CERT_FILE", "CHAINCODE_CLIENT_CA_CERT_FILE",
		"CORE_CHAINCODE_LOGGING_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.AsService())
	assert.True(t, cfg.TLSDisabled)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestFromEnvService(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAINCODE_SERVER_ADDRESS", "0.0.0.0:9999")
	t.Setenv("CHAINCODE_ID", "bklogistics:abc123")
	t.Setenv("CORE_CHAINCODE_LOGGING_LEVEL", "DEBUG")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.AsService())
	assert.Equal(t, "bklogistics:abc123", cfg.CCID)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestFromEnvRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"address without id", map[string]string{"CHAINCODE_SERVER_ADDRESS": ":9999"}},
		{"tls flag not boolean", map[string]string{"CHAINCODE_TLS_DISABLED": "maybe"}},
		{"tls enabled without key pair", map[string]string{
			"CHAINCODE_SERVER_ADDRESS": ":9999",
			"CHAINCODE_ID":             "cc:1",
			"CHAINCODE_TLS_DISABLED":   "false",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("CHAINCODE_ID")
	os.Unsetenv("CHAINCODE_SERVER_ADDRESS")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("CHAINCODE_SERVER_ADDRESS=127.0.0.1:7052\nCHAINCODE_ID=bklogistics:fromfile\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7052", cfg.ServerAddress)
	assert.Equal(t, "bklogistics:fromfile", cfg.CCID)
}

func TestLoadConfigWithoutDotEnv(t *testing.T) {
	clearEnv(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = LoadConfig()
	assert.NoError(t, err)
}

func TestReadTLSFiles(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.pem")
	certPath := filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(keyPath, []byte("KEY"), 0o600))
	require.NoError(t, os.WriteFile(certPath, []byte("CERT"), 0o600))

	cfg := &Config{TLSKeyFile: keyPath, TLSCertFile: certPath}
	files, err := cfg.ReadTLSFiles()
	require.NoError(t, err)
	assert.Equal(t, []byte("KEY"), files.Key)
	assert.Equal(t, []byte("CERT"), files.Cert)
	assert.Nil(t, files.ClientCA)

	cfg.ClientCAFile = filepath.Join(dir, "missing.pem")
	_, err = cfg.ReadTLSFiles()
	assert.Error(t, err)
}
