package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/qrlink/pkg/qrlink"
	"github.com/tendant/qrlink/pkg/qrlink/api"
	memoryindex "github.com/tendant/qrlink/pkg/qrlink/index/memory"
	pgindex "github.com/tendant/qrlink/pkg/qrlink/index/postgres"
	redisindex "github.com/tendant/qrlink/pkg/qrlink/index/redis"
	fsstorage "github.com/tendant/qrlink/pkg/qrlink/storage/fs"
	memorystorage "github.com/tendant/qrlink/pkg/qrlink/storage/memory"
	s3storage "github.com/tendant/qrlink/pkg/qrlink/storage/s3"
	"github.com/tendant/qrlink/pkg/qrlink/storage/unavailable"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:             "8080",
		Environment:      "development",
		PublicBaseURL:    "http://localhost:8080",
		AWSRegion:        "us-east-1",
		IndexTTL:         30 * 24 * time.Hour,
		IndexSize:        4096,
		CandidateLimit:   qrlink.DefaultCandidateLimit,
		MaxUploadBytes:   api.DefaultMaxUploadBytes,
		MetricsNamespace: "qrlink",
	}
}

// ServerConfig represents the gateway configuration. Field tags drive
// cleanenv in WithEnv.
type ServerConfig struct {
	Port          string `env:"PORT" env-default:"8080" env-description:"HTTP listen port"`
	Environment   string `env:"ENVIRONMENT" env-default:"development" env-description:"development, production or testing"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080" env-description:"Default payload and locator URL base"`

	// Storage configuration. An empty StorageURL leaves storage unconfigured.
	StorageURL       string `env:"STORAGE_URL" env-description:"memory://, file:///path or s3://bucket?region=...; unset leaves storage unconfigured"`
	StoragePublicURL string `env:"STORAGE_PUBLIC_URL" env-description:"Public base URL stored objects are reachable under"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-description:"S3 access key"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-description:"S3 secret key"`
	AWSRegion          string `env:"AWS_REGION" env-default:"us-east-1" env-description:"S3 region"`
	AWSS3Endpoint      string `env:"AWS_S3_ENDPOINT" env-description:"Custom S3-compatible endpoint"`

	// Optional exact-key index: memory://, redis://..., postgres://...
	IndexURL  string        `env:"INDEX_URL" env-description:"Optional exact-key index: memory://, redis://... or postgres://..."`
	IndexTTL  time.Duration `env:"INDEX_TTL" env-default:"720h" env-description:"Redis index entry lifetime"`
	IndexSize int           `env:"INDEX_SIZE" env-default:"4096" env-description:"In-memory index capacity"`

	CandidateLimit   int    `env:"LOOKUP_CANDIDATE_LIMIT" env-default:"10" env-description:"Prefix matches considered per lookup"`
	MaxUploadBytes   int64  `env:"MAX_UPLOAD_BYTES" env-description:"POST /store body cap"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" env-default:"qrlink" env-description:"Prometheus metric namespace"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	base, err := url.Parse(c.PublicBaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("public base url must be an absolute http(s) URL, got: %q", c.PublicBaseURL)
	}

	switch storageScheme(c.StorageURL) {
	case "", "memory", "file", "s3":
	default:
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", c.StorageURL)
	}

	switch storageScheme(c.IndexURL) {
	case "", "memory", "redis", "rediss", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported INDEX_URL format: %s (use 'memory://', 'redis://...', or 'postgres://...')", c.IndexURL)
	}

	if c.CandidateLimit <= 0 {
		return errors.New("lookup candidate limit must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

func storageScheme(raw string) string {
	if raw == "" {
		return ""
	}
	if raw == "memory" {
		return "memory"
	}
	scheme, _, ok := strings.Cut(raw, "://")
	if !ok {
		return "invalid"
	}
	return strings.ToLower(scheme)
}

// Gateway bundles the components built from a ServerConfig.
type Gateway struct {
	Store       qrlink.BlobStore
	BackendName string
	Index       qrlink.Index
	Storage     *qrlink.StorageClient
	Lookup      *qrlink.LookupService
	Resolver    *qrlink.Resolver
	Observer    *qrlink.PrometheusObserver

	maxUploadBytes int64
	closers        []func() error
}

// Handler returns the HTTP handler for the gateway endpoints.
func (g *Gateway) Handler() *api.GatewayHandler {
	return api.NewGatewayHandler(g.Store, g.Storage, g.Lookup, g.Resolver,
		api.WithBackendName(g.BackendName),
		api.WithMaxUploadBytes(g.maxUploadBytes),
	)
}

// Close releases index connections.
func (g *Gateway) Close() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildGateway creates the storage, index, lookup and resolver from the
// configuration. Metrics are registered on reg when it is non-nil.
//
// A storage backend that cannot be built degrades to the unavailable store so
// requests report the configuration problem. An index that cannot be reached
// is skipped.
func (c *ServerConfig) BuildGateway(ctx context.Context, reg prometheus.Registerer) (*Gateway, error) {
	g := &Gateway{
		Resolver:       qrlink.NewResolver(c.PublicBaseURL),
		maxUploadBytes: c.MaxUploadBytes,
	}

	store, name, err := c.buildStore()
	if err != nil {
		slog.Error("Storage backend unavailable", "storage_url", redactURL(c.StorageURL), "error", err)
		store, name = unavailable.New(err.Error()), "unconfigured"
	}
	g.Store, g.BackendName = store, name

	idx, closer, err := c.buildIndex(ctx)
	if err != nil {
		slog.Warn("Content key index disabled", "index_url", redactURL(c.IndexURL), "error", err)
	} else if idx != nil {
		g.Index = idx
		if closer != nil {
			g.closers = append(g.closers, closer)
		}
	}

	var observer qrlink.Observer
	if reg != nil {
		g.Observer, err = qrlink.NewPrometheusObserver(c.MetricsNamespace, reg)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		observer = g.Observer
	}

	storageOpts := []qrlink.StorageClientOption{qrlink.WithBackendName(name), qrlink.WithStoreObserver(observer)}
	lookupOpts := []qrlink.LookupOption{
		qrlink.WithLookupBackendName(name),
		qrlink.WithCandidateLimit(c.CandidateLimit),
		qrlink.WithLookupObserver(observer),
	}
	if g.Index != nil {
		storageOpts = append(storageOpts, qrlink.WithStoreIndex(g.Index))
		lookupOpts = append(lookupOpts, qrlink.WithLookupIndex(g.Index))
	}
	g.Storage = qrlink.NewStorageClient(store, storageOpts...)
	g.Lookup = qrlink.NewLookupService(store, lookupOpts...)

	slog.Info("Gateway configured",
		"storage", name,
		"index", g.Index != nil,
		"public_base_url", c.PublicBaseURL,
		"candidate_limit", c.CandidateLimit)
	return g, nil
}

func (c *ServerConfig) buildStore() (qrlink.BlobStore, string, error) {
	switch storageScheme(c.StorageURL) {
	case "":
		return unavailable.New("STORAGE_URL is not set"), "unconfigured", nil
	case "memory":
		slog.Warn("Using in-memory storage, stored files are lost on restart")
		return memorystorage.New(), "memory", nil
	case "file":
		baseDir := strings.TrimPrefix(c.StorageURL, "file://")
		if baseDir == "" {
			return nil, "", errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		store, err := fsstorage.New(fsstorage.Config{BaseDir: baseDir, URLPrefix: c.StoragePublicURL})
		if err != nil {
			return nil, "", err
		}
		return store, "fs", nil
	case "s3":
		s3Config, err := c.s3Config()
		if err != nil {
			return nil, "", err
		}
		store, err := s3storage.New(s3Config)
		if err != nil {
			return nil, "", err
		}
		return store, "s3", nil
	default:
		return nil, "", fmt.Errorf("unsupported STORAGE_URL format: %s", c.StorageURL)
	}
}

// s3Config parses s3://bucket?region=...&endpoint=...&path_style=true&public_read=true&create_bucket=true.
// AWS_* settings fill in what the URL leaves out.
func (c *ServerConfig) s3Config() (s3storage.Config, error) {
	u, err := url.Parse(c.StorageURL)
	if err != nil {
		return s3storage.Config{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return s3storage.Config{}, errors.New("bucket name cannot be empty in STORAGE_URL")
	}
	q := u.Query()

	cfg := s3storage.Config{
		Bucket:          u.Host,
		Region:          firstNonEmpty(q.Get("region"), c.AWSRegion),
		Endpoint:        firstNonEmpty(q.Get("endpoint"), c.AWSS3Endpoint),
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		PublicBaseURL:   c.StoragePublicURL,
	}
	if cfg.UsePathStyle, err = queryBool(q, "path_style", cfg.Endpoint != ""); err != nil {
		return s3storage.Config{}, err
	}
	if cfg.PublicRead, err = queryBool(q, "public_read", false); err != nil {
		return s3storage.Config{}, err
	}
	if cfg.CreateBucketIfNotExist, err = queryBool(q, "create_bucket", false); err != nil {
		return s3storage.Config{}, err
	}
	if v := q.Get("presign_seconds"); v != "" {
		if cfg.PresignDuration, err = strconv.Atoi(v); err != nil {
			return s3storage.Config{}, fmt.Errorf("invalid presign_seconds: %w", err)
		}
	}
	if v := q.Get("sse"); v != "" {
		cfg.EnableSSE = true
		cfg.SSEAlgorithm = v
		cfg.SSEKMSKeyID = q.Get("kms_key_id")
	}
	return cfg, nil
}

func (c *ServerConfig) buildIndex(ctx context.Context) (qrlink.Index, func() error, error) {
	switch storageScheme(c.IndexURL) {
	case "":
		return nil, nil, nil
	case "memory":
		idx, err := memoryindex.New(c.IndexSize)
		return idx, nil, err
	case "redis", "rediss":
		idx, err := redisindex.New(redisindex.Config{RedisURL: c.IndexURL, TTL: c.IndexTTL})
		if err != nil {
			return nil, nil, err
		}
		return idx, idx.Close, nil
	case "postgres", "postgresql":
		idx, pool, err := pgindex.Connect(ctx, c.IndexURL)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() error { pool.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported INDEX_URL format: %s", c.IndexURL)
	}
}

func queryBool(q url.Values, key string, def bool) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// redactURL drops credentials from connection strings before logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Redacted()
}
