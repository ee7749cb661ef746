package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	CredentialStoreFile   = "file"
	CredentialStoreSQLite = "sqlite"
	CredentialStoreRedis  = "redis"
	CredentialStoreMemory = "memory"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	AllowedOrigins []string `toml:"allowed_origins"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// conference hub REST API
	APIBaseURL    string        `toml:"api_base_url"`
	APITimeout    time.Duration `toml:"api_timeout"`
	RoomsCacheTTL time.Duration `toml:"rooms_cache_ttl"`

	// persisted credential slot
	CredentialStore string `toml:"credential_store"`
	CredentialFile  string `toml:"credential_file"`
	SQLitePath      string `toml:"sqlite_path"`
	RedisHost       string `toml:"redis_host"`
	RedisPort       string `toml:"redis_port"`
	RedisKeyPrefix  string `toml:"redis_key_prefix"`

	// session store / access guard
	RefreshOnUnauthorized    bool          `toml:"refresh_on_unauthorized"`
	ForgetRejectedCredential bool          `toml:"forget_rejected_credential"`
	RevalidateInterval       time.Duration `toml:"revalidate_interval"`
	CheckTimeout             time.Duration `toml:"check_timeout"`
	LoginPath                string        `toml:"login_path"`

	LoginRateLimitAllowedPerMin int `toml:"login_rate_limit_allowed_per_min"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	TracingEnabled        bool   `toml:"tracing_enabled"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func sectionName(env string) string {
	switch strings.ToLower(env) {
	case "prod", "production":
		return "production"
	default:
		return "development"
	}
}

// Load reads the TOML file and returns the config of the given environment,
// with defaults filled in for everything left unset.
func Load(env, path string) (*Config, error) {
	var t Toml
	md, err := toml.DecodeFile(path, &t)
	if err != nil {
		return nil, fmt.Errorf("decode toml config %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config section [%s] missing in %s", sectionName(env), path)
	}

	section := sectionName(env)
	if !md.IsDefined(section, "refresh_on_unauthorized") {
		cfg.RefreshOnUnauthorized = true
	}
	if cfg.Environment == "" {
		cfg.Environment = section
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a development config, used by the CLI when no file is given.
func Default() *Config {
	cfg := &Config{
		Environment:           "development",
		RefreshOnUnauthorized: true,
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://conferencehub-backend.onrender.com/api"
	}
	if c.APITimeout == 0 {
		c.APITimeout = 10 * time.Second
	}
	if c.RoomsCacheTTL == 0 {
		c.RoomsCacheTTL = 30 * time.Second
	}
	if c.CredentialStore == "" {
		c.CredentialStore = CredentialStoreFile
	}
	if c.CredentialFile == "" {
		c.CredentialFile = "./.confhub/credentials.json"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "./.confhub/confhub.db"
	}
	if c.RedisHost == "" {
		c.RedisHost = "localhost"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.RedisKeyPrefix == "" {
		c.RedisKeyPrefix = "confhub-credential||"
	}
	if c.CheckTimeout == 0 {
		c.CheckTimeout = 3 * time.Second
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "127.0.0.1"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
}

func (c *Config) Validate() error {
	switch c.CredentialStore {
	case CredentialStoreFile, CredentialStoreSQLite, CredentialStoreRedis, CredentialStoreMemory:
	default:
		return fmt.Errorf("unknown credential store: %q", c.CredentialStore)
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		return fmt.Errorf("login path must be absolute, got %q", c.LoginPath)
	}
	if c.APITimeout < 0 || c.CheckTimeout < 0 || c.RevalidateInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}
