package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the chaincode process settings. When both ServerAddress and CCID are
// set the chaincode runs as an external service instead of being launched by the peer.
type Config struct {
	ServerAddress string
	CCID          string
	TLSDisabled   bool
	TLSKeyFile    string
	TLSCertFile   string
	ClientCAFile  string
	LogLevel      string
}

// LoadConfig reads the environment, after merging an optional .env file from the
// working directory. Variables already set in the environment win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerAddress: os.Getenv("CHAINCODE_SERVER_ADDRESS"),
		CCID:          os.Getenv("CHAINCODE_ID"),
		TLSKeyFile:    os.Getenv("CHAINCODE_TLS_KEY_FILE"),
		TLSCertFile:   os.Getenv("CHAINCODE_TLS_CERT_FILE"),
		ClientCAFile:  os.Getenv("CHAINCODE_CLIENT_CA_CERT_FILE"),
		LogLevel:      os.Getenv("CORE_CHAINCODE_LOGGING_LEVEL"),
		TLSDisabled:   true,
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if v := os.Getenv("CHAINCODE_TLS_DISABLED"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("CHAINCODE_TLS_DISABLED must be a boolean, got %q", v)
		}
		cfg.TLSDisabled = disabled
	}
	if cfg.ServerAddress != "" && cfg.CCID == "" {
		return nil, errors.New("CHAINCODE_ID is required when CHAINCODE_SERVER_ADDRESS is set")
	}
	if cfg.AsService() && !cfg.TLSDisabled && (cfg.TLSKeyFile == "" || cfg.TLSCertFile == "") {
		return nil, errors.New("CHAINCODE_TLS_KEY_FILE and CHAINCODE_TLS_CERT_FILE are required when TLS is enabled")
	}
	return cfg, nil
}

// AsService reports whether the chaincode should serve itself (chaincode-as-a-service).
func (c *Config) AsService() bool {
	return c.ServerAddress != "" && c.CCID != ""
}

// TLSFiles holds the PEM contents referenced by the TLS settings.
type TLSFiles struct {
	Key      []byte
	Cert     []byte
	ClientCA []byte // optional; enables client authentication
}

// ReadTLSFiles loads the key pair and optional client CA from disk.
func (c *Config) ReadTLSFiles() (*TLSFiles, error) {
	key, err := os.ReadFile(c.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read TLS key file: %w", err)
	}
	cert, err := os.ReadFile(c.TLSCertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read TLS cert file: %w", err)
	}
	files := &TLSFiles{Key: key, Cert: cert}
	if c.ClientCAFile != "" {
		ca, err := os.ReadFile(c.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA cert file: %w", err)
		}
		files.ClientCA = ca
	}
	return files, nil
}
