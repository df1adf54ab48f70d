package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv applies environment variable overrides.
//
// Environment variable mapping:
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//	PUBLIC_BASE_URL - Default payload and locator base (default: "http://localhost:8080")
//
// Storage:
//
//	STORAGE_URL - Storage connection string (one of):
//	              - "memory://" - In-memory development storage
//	              - "file:///path/to/data" - Filesystem storage
//	              - "s3://bucket?region=us-east-1" - S3 storage
//	              Unset leaves storage unconfigured; requests then fail with a configuration error.
//	STORAGE_PUBLIC_URL - Public base URL objects are reachable under
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_REGION, AWS_S3_ENDPOINT - S3 credentials
//
// Lookup:
//
//	INDEX_URL - Optional exact-key index ("memory://", "redis://...", "postgres://...")
//	INDEX_TTL - Redis entry lifetime (default: 720h)
//	LOOKUP_CANDIDATE_LIMIT - Prefix matches considered per lookup (default: 10)
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// EnvUsage renders the environment variable help text.
func EnvUsage() string {
	var cfg ServerConfig
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
