// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "DAS_CONFIG"

	BackendMemory    = "memory"
	BackendFirestore = "firestore"
)

// Config holds the settings of the DAS service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port        string   `yaml:"port"`
	Mode        string   `yaml:"mode"`
	LogLevel    string   `yaml:"logLevel"`
	MaxUploadMB int64    `yaml:"maxUploadMb"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// StorageConfig selects and configures the record store.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	ProjectID  string `yaml:"projectId"`
	DatabaseID string `yaml:"databaseId"`
	Collection string `yaml:"collection"`
	ExpiryDays int    `yaml:"expiryDays"`
}

// AuthConfig holds the single admin account and the token secret.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwtSecret"`
	AdminUsername     string        `yaml:"adminUsername"`
	AdminPasswordHash string        `yaml:"adminPasswordHash"`
	TokenTTL          time.Duration `yaml:"tokenTtl"`
}

// Expiry is how long a stored record lives.
func (s StorageConfig) Expiry() time.Duration {
	return time.Duration(s.ExpiryDays) * 24 * time.Hour
}

// MaxUploadBytes is the upload limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

// Load reads .env (without overriding the environment), then the YAML file
// named by DAS_CONFIG if set, then applies environment overrides.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("erro ao carregar .env: %w", err)
	}

	cfg := defaultConfig()
	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("não foi possível ler %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("não foi possível interpretar %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET não está configurada"))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("GIN_MODE desconhecido %q", c.Server.Mode))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFirestore:
		if c.Storage.ProjectID == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT_ID é obrigatório com STORAGE_BACKEND=firestore"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND desconhecido %q", c.Storage.Backend))
	}
	if c.Storage.ExpiryDays <= 0 {
		errs = append(errs, errors.New("RECORD_EXPIRY_DAYS deve ser positivo"))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("PORT", &c.Server.Port)
	setString("GIN_MODE", &c.Server.Mode)
	setString("LOG_LEVEL", &c.Server.LogLevel)
	setString("STORAGE_BACKEND", &c.Storage.Backend)
	setString("FIRESTORE_PROJECT_ID", &c.Storage.ProjectID)
	setString("FIRESTORE_DATABASE_ID", &c.Storage.DatabaseID)
	setString("FIRESTORE_COLLECTION", &c.Storage.Collection)
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("ADMIN_USERNAME", &c.Auth.AdminUsername)
	setString("ADMIN_PASSWORD_HASH", &c.Auth.AdminPasswordHash)

	if v := os.Getenv("RECORD_EXPIRY_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RECORD_EXPIRY_DAYS inválido %q: %w", v, err)
		}
		c.Storage.ExpiryDays = days
	}
	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_MB inválido %q: %w", v, err)
		}
		c.Server.MaxUploadMB = mb
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		c.Server.CORSOrigins = origins
	}
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Server.Port != "" {
		base.Server.Port = override.Server.Port
	}
	if override.Server.Mode != "" {
		base.Server.Mode = override.Server.Mode
	}
	if override.Server.LogLevel != "" {
		base.Server.LogLevel = override.Server.LogLevel
	}
	if override.Server.MaxUploadMB > 0 {
		base.Server.MaxUploadMB = override.Server.MaxUploadMB
	}
	if len(override.Server.CORSOrigins) > 0 {
		base.Server.CORSOrigins = override.Server.CORSOrigins
	}

	if override.Storage.Backend != "" {
		base.Storage.Backend = override.Storage.Backend
	}
	if override.Storage.ProjectID != "" {
		base.Storage.ProjectID = override.Storage.ProjectID
	}
	if override.Storage.DatabaseID != "" {
		base.Storage.DatabaseID = override.Storage.DatabaseID
	}
	if override.Storage.Collection != "" {
		base.Storage.Collection = override.Storage.Collection
	}
	if override.Storage.ExpiryDays > 0 {
		base.Storage.ExpiryDays = override.Storage.ExpiryDays
	}

	if override.Auth.JWTSecret != "" {
		base.Auth.JWTSecret = override.Auth.JWTSecret
	}
	if override.Auth.AdminUsername != "" {
		base.Auth.AdminUsername = override.Auth.AdminUsername
	}
	if override.Auth.AdminPasswordHash != "" {
		base.Auth.AdminPasswordHash = override.Auth.AdminPasswordHash
	}
	if override.Auth.TokenTTL > 0 {
		base.Auth.TokenTTL = override.Auth.TokenTTL
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:        "8084",
			Mode:        "debug",
			MaxUploadMB: 10,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{
			Backend:    BackendMemory,
			DatabaseID: "(default)",
			Collection: "das-records",
			ExpiryDays: 30,
		},
		Auth: AuthConfig{
			AdminUsername: "admin",
			TokenTTL:      24 * time.Hour,
		},
	}
}
