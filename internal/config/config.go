package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds settings for an S3-compatible IPFS pinning gateway.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// PinataConfig holds settings for the IPFS pinning HTTP API.
type PinataConfig struct {
	JWT    string
	APIURL string
}

// StoreConfig selects and configures the content-addressed store.
// Provider is one of "pinata", "s3", "sandbox"; empty picks a provider from the
// configured credentials and falls back to the sandbox only when none are present.
type StoreConfig struct {
	Provider       string
	MaxUploadBytes int64
	AllowedTypes   []string
	GatewayURL     string
	Pinata         PinataConfig
	MinIO          MinIOConfig
}

// LedgerConfig selects and configures the ledger anchor client.
type LedgerConfig struct {
	Provider         string
	RPCURL           string
	PrivateKey       string
	ContractAddress  string
	ChainID          int64
	ConfirmTimeout   time.Duration
	PollInterval     time.Duration
	SubmitMaxRetries int
}

// AuthConfig holds the key used to validate actor tokens.
type AuthConfig struct {
	JWTSecret string
}

// PolicyConfig holds deployment-level certification choices.
type PolicyConfig struct {
	CertifyRoles           string
	DefaultDigestAlgorithm string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Env            string
	AppHost        string
	Port           string
	LogLevel       string
	RequestTimeout time.Duration
	Database       DatabaseConfig
	Store          StoreConfig
	Ledger         LedgerConfig
	Auth           AuthConfig
	Policy         PolicyConfig

	// InstitutionsFile is an optional JSON array of institutions upserted at startup.
	InstitutionsFile string
}

// IsProduction reports whether the process runs with production settings.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Env:              getEnv("APP_ENV", "development"),
		AppHost:          getEnv("APP_HOST", "localhost:8080"),
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 180)) * time.Second,
		InstitutionsFile: getEnv("INSTITUTIONS_FILE", ""),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Store: StoreConfig{
			Provider:       getEnv("STORE_PROVIDER", ""),
			MaxUploadBytes: int64(getEnvInt("STORE_MAX_UPLOAD_BYTES", 25*1024*1024)),
			AllowedTypes: getEnvList("STORE_ALLOWED_TYPES", []string{
				"application/pdf",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			}),
			GatewayURL: getEnv("IPFS_GATEWAY_URL", "https://gateway.pinata.cloud"),
			Pinata: PinataConfig{
				JWT:    getEnv("PINATA_JWT", ""),
				APIURL: getEnv("PINATA_API_URL", "https://api.pinata.cloud"),
			},
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", true),
			},
		},
		Ledger: LedgerConfig{
			Provider:         getEnv("LEDGER_PROVIDER", ""),
			RPCURL:           getEnv("LEDGER_RPC_URL", ""),
			PrivateKey:       getEnv("LEDGER_PRIVATE_KEY", ""),
			ContractAddress:  getEnv("LEDGER_CONTRACT_ADDRESS", ""),
			ChainID:          int64(getEnvInt("LEDGER_CHAIN_ID", 80002)),
			ConfirmTimeout:   time.Duration(getEnvInt("LEDGER_CONFIRM_TIMEOUT_SEC", 120)) * time.Second,
			PollInterval:     time.Duration(getEnvInt("LEDGER_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
			SubmitMaxRetries: getEnvInt("LEDGER_SUBMIT_MAX_RETRIES", 3),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Policy: PolicyConfig{
			CertifyRoles:           getEnv("CERTIFY_ROLES", "admin,institution_admin"),
			DefaultDigestAlgorithm: getEnv("DEFAULT_DIGEST_ALGORITHM", "sha256"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
