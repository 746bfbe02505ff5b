package config

import (
	"fmt"

	"github.com/google/uuid"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if c.Sync.RemoteEnabled {
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required when sync.remote_enabled is true")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
		}
	}

	if c.Sync.DefaultUserID != "" {
		if _, err := uuid.Parse(c.Sync.DefaultUserID); err != nil {
			return fmt.Errorf("sync.default_user_id must be a UUID: %w", err)
		}
	}

	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("sync.debounce must be > 0 (got %v)", c.Sync.Debounce)
	}
	if c.Sync.BaseBackoff <= 0 || c.Sync.MaxBackoff < c.Sync.BaseBackoff {
		return fmt.Errorf("sync backoff bounds invalid (base %v, max %v)", c.Sync.BaseBackoff, c.Sync.MaxBackoff)
	}

	if c.Storage.BasePath == "" {
		return fmt.Errorf("storage.base_path must not be empty")
	}

	return nil
}
