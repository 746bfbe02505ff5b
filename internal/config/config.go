package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Sync      SyncConfig      `yaml:"sync"`
	Assistant AssistantConfig `yaml:"assistant"`
	CORS      CORSConfig      `yaml:"cors"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings. An empty DSN puts the
// application in local-only mode: no pool is created and every entity service
// works purely against the reactive caches.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// AuthConfig holds bearer-token validation settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	JWTIssuer string `yaml:"jwt_issuer" env:"AUTH_JWT_ISSUER" env-default:"dailysync"`
}

// StorageConfig holds durable key-value store settings.
type StorageConfig struct {
	BasePath  string `yaml:"base_path" env:"STORAGE_BASE_PATH" env-default:"./data/kv"`
	Namespace string `yaml:"namespace" env:"STORAGE_NAMESPACE" env-default:"dsk"`
}

// SyncConfig holds sync manager settings. DefaultUserID names the owner that
// background sync passes act for in single-user deployments; when empty,
// background refetches run without an identity and skip remote work.
type SyncConfig struct {
	RemoteEnabled bool          `yaml:"remote_enabled"  env:"SYNC_REMOTE_ENABLED" env-default:"true"`
	DefaultUserID string        `yaml:"default_user_id" env:"SYNC_DEFAULT_USER_ID"`
	Debounce      time.Duration `yaml:"debounce"        env:"SYNC_DEBOUNCE"       env-default:"800ms"`
	BaseBackoff   time.Duration `yaml:"base_backoff"    env:"SYNC_BASE_BACKOFF"   env-default:"1s"`
	MaxBackoff    time.Duration `yaml:"max_backoff"     env:"SYNC_MAX_BACKOFF"    env-default:"15s"`
}

// AssistantConfig holds settings for the optional language-model augmentation
// of the rule-based extractor. An empty APIKey keeps extraction fully local.
type AssistantConfig struct {
	APIKey  string        `yaml:"api_key" env:"ASSISTANT_API_KEY"`
	APIURL  string        `yaml:"api_url" env:"ASSISTANT_API_URL" env-default:"https://api.mistral.ai/v1"`
	Model   string        `yaml:"model"   env:"ASSISTANT_MODEL"   env-default:"mistral-small-latest"`
	Timeout time.Duration `yaml:"timeout" env:"ASSISTANT_TIMEOUT" env-default:"20s"`
}

// CORSConfig holds Cross-Origin Resource Sharing settings. AllowedOrigins is
// a comma-separated list; "*" allows any origin.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization,Content-Type,X-Request-Id"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
