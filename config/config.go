package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/gallery/database"
	galleryhttp "github.com/sagarc03/gallery/http"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for gallery.
//
// It carries the ambient, non-secret settings. Credentials and endpoints come
// from the Resolver as Settings.
type Config struct {
	Env      string                 `mapstructure:"env" validate:"required,oneof=development production prod"`
	Server   ServerConfig           `mapstructure:"server"`
	Service  ServiceConfig          `mapstructure:"service"`
	Database database.Config        `mapstructure:"database"`
	Storage  StorageConfig          `mapstructure:"storage"`
	CORS     galleryhttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig              `mapstructure:"log"`
	Metrics  MetricsConfig          `mapstructure:"metrics"`

	settings map[string]any
}

// AllSettings returns the effective settings keyed the way config files
// spell them. It is nil for a Config that was not built by Load.
func (c *Config) AllSettings() map[string]any {
	return c.settings
}

// Mode returns the resolver mode selected by Env.
func (c *Config) Mode() Mode {
	mode, err := ParseMode(c.Env)
	if err != nil {
		return ModeDevelopment
	}
	return mode
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize   int64  `mapstructure:"max_upload_size" validate:"min=0"`
	MaxPageSize     int    `mapstructure:"max_page_size" validate:"min=0"`
	UploadRedirect  string `mapstructure:"upload_redirect" validate:"required"`
	ExposeErrors    bool   `mapstructure:"expose_errors"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"min=1"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	CleanupTimeout int    `mapstructure:"cleanup_timeout" validate:"min=1"`
	KeyPrefix      string `mapstructure:"key_prefix"`
}

// StorageConfig selects the object storage backend.
type StorageConfig struct {
	Backend      string `mapstructure:"backend" validate:"required,oneof=s3 filesystem"`
	Path         string `mapstructure:"path" validate:"required_if=Backend filesystem"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"env":             "env",
	"db-type":         "database.type",
	"storage-backend": "storage.backend",
	"storage-path":    "storage.path",
	"port":            "server.port",
	"log-level":       "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed && f.Name != "config" {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", string(ModeDevelopment))

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_upload_size", 0) // 0 means no limit
	v.SetDefault("server.max_page_size", 0)   // 0 means no cap
	v.SetDefault("server.upload_redirect", "/images")
	v.SetDefault("server.expose_errors", true)
	v.SetDefault("server.shutdown_timeout", 30) // seconds

	v.SetDefault("service.cleanup_timeout", 30) // seconds
	v.SetDefault("service.key_prefix", "user-upload/")

	v.SetDefault("database.type", "") // inferred from DATABASE_URL
	v.SetDefault("database.tables.images", "images")
	v.SetDefault("database.tables.comments", "comments")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.backend", "s3")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.use_path_style", false)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("log.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("GALLERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.Database.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.settings = v.AllSettings()

	return &cfg, nil
}
