package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithPublicBaseURL sets the base address used for default payloads and locator URLs
func WithPublicBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.PublicBaseURL = baseURL
		return nil
	}
}

// WithStorageURL selects the storage backend by connection string
func WithStorageURL(storageURL string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = storageURL
		return nil
	}
}

// WithStoragePublicURL sets the public base URL of stored objects
func WithStoragePublicURL(publicURL string) Option {
	return func(c *ServerConfig) error {
		c.StoragePublicURL = publicURL
		return nil
	}
}

// WithS3Credentials sets static S3 credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		if (accessKeyID == "") != (secretAccessKey == "") {
			return fmt.Errorf("both access key ID and secret access key are required")
		}
		c.AWSAccessKeyID = accessKeyID
		c.AWSSecretAccessKey = secretAccessKey
		return nil
	}
}

// WithIndex enables the exact-key index
func WithIndex(indexURL string, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		c.IndexURL = indexURL
		if ttl > 0 {
			c.IndexTTL = ttl
		}
		return nil
	}
}

// WithCandidateLimit bounds the prefix matches considered per lookup
func WithCandidateLimit(limit int) Option {
	return func(c *ServerConfig) error {
		if limit <= 0 {
			return fmt.Errorf("candidate limit must be positive, got: %d", limit)
		}
		c.CandidateLimit = limit
		return nil
	}
}

// WithMaxUploadBytes caps the POST /store body
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload bytes must be positive, got: %d", n)
		}
		c.MaxUploadBytes = n
		return nil
	}
}
