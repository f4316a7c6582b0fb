package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
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

// Storage backends.
const (
	BackendS3         = "s3"
	BackendMinio      = "minio"
	BackendFilesystem = "filesystem"
)

// Config is the root configuration struct for mediaproxy.
type Config struct {
	Env     string        `mapstructure:"env"`
	Server  ServerConfig  `mapstructure:"server"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Storage StorageConfig `mapstructure:"storage"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// IsProduction reports whether the process runs with production settings.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// UploadConfig holds the upload policy and presign settings.
type UploadConfig struct {
	// AllowedContentTypes is the exact-match allow-list; empty allows every type.
	AllowedContentTypes []string `mapstructure:"allowed_content_types"`
	// MaxUploadBytes caps direct uploads; 0 means no limit.
	MaxUploadBytes      int64         `mapstructure:"max_upload_bytes" validate:"min=0"`
	PresignExpiry       time.Duration `mapstructure:"presign_expiry" validate:"min=1s,max=168h"`
	MaxPresignBodyBytes int64         `mapstructure:"max_presign_body_bytes" validate:"min=1"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=s3 minio filesystem"`
	// Timeout bounds every backend call; 0 disables the deadline.
	Timeout    time.Duration    `mapstructure:"timeout" validate:"min=0"`
	S3         S3Config         `mapstructure:"s3"`
	Minio      MinioConfig      `mapstructure:"minio"`
	Filesystem FilesystemConfig `mapstructure:"filesystem"`
}

// S3Config configures the AWS S3 backend. Credentials fall back to the SDK
// default chain when AccessKey is empty.
type S3Config struct {
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	Endpoint     string `mapstructure:"endpoint" validate:"omitempty,url"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
}

// MinioConfig configures an S3-compatible backend reached through minio-go.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// FilesystemConfig configures the local directory backend.
type FilesystemConfig struct {
	Path string `mapstructure:"path"`
	// PublicURL is the externally reachable base URL of this server, used to
	// build upload URLs.
	PublicURL string `mapstructure:"public_url" validate:"omitempty,url"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":             "server.port",
	"backend":          "storage.backend",
	"storage-path":     "storage.filesystem.path",
	"bucket":           "storage.s3.bucket",
	"region":           "storage.s3.region",
	"max-upload-bytes": "upload.max_upload_bytes",
	"log-level":        "log.level",
	"env":              "env",
}

// legacyEnv lists the unprefixed variable names still honoured for each key.
var legacyEnv = map[string]string{
	"server.port":                  "PORT",
	"upload.allowed_content_types": "ALLOWED_CONTENT_TYPES",
	"upload.max_upload_bytes":      "MAX_UPLOAD_BYTES",
	"storage.s3.region":            "AWS_REGION",
	"storage.s3.bucket":            "S3_BUCKET",
	"storage.s3.endpoint":          "S3_ENDPOINT",
	"storage.minio.endpoint":       "MINIO_ENDPOINT",
	"storage.minio.access_key":     "MINIO_ACCESS_KEY",
	"storage.minio.secret_key":     "MINIO_SECRET_KEY",
	"storage.minio.bucket":         "MINIO_BUCKET",
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
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// bindLegacyEnv makes the prefixed variable win over the historical name.
func bindLegacyEnv(v *viper.Viper) {
	for key, name := range legacyEnv {
		prefixed := "MEDIAPROXY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, name)
	}
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0) // streams of any length
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("upload.allowed_content_types", []string{})
	v.SetDefault("upload.max_upload_bytes", 0) // 0 means no limit
	v.SetDefault("upload.presign_expiry", 15*time.Minute)
	v.SetDefault("upload.max_presign_body_bytes", 64<<10)

	v.SetDefault("storage.backend", BackendFilesystem)
	v.SetDefault("storage.timeout", 30*time.Second)
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "")
	v.SetDefault("storage.minio.region", "us-east-1")
	v.SetDefault("storage.minio.use_ssl", true)
	v.SetDefault("storage.filesystem.path", "./data")
	v.SetDefault("storage.filesystem.public_url", "http://localhost:3000")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.exposed_headers", []string{"ETag", "Content-Length"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)

	v.SetDefault("log.level", "info")
}

// LoadDotEnv loads variables from .env style files into the process
// environment. Missing files are skipped; already-set variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
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
	v.SetEnvPrefix("MEDIAPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Upload.AllowedContentTypes = splitList(cfg.Upload.AllowedContentTypes)

	// 6. Validate using go-playground/validator
	validate := validator.New()
	validate.RegisterStructValidation(validateStorage, StorageConfig{})
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// splitList flattens comma separated entries, as env values arrive as one
// string, trimming blanks and dropping empty entries.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateStorage requires the settings of the selected backend only.
func validateStorage(sl validator.StructLevel) {
	s := sl.Current().Interface().(StorageConfig)

	required := func(value, field string) {
		if strings.TrimSpace(value) == "" {
			sl.ReportError(value, field, field, "required", s.Backend)
		}
	}

	switch s.Backend {
	case BackendS3:
		required(s.S3.Region, "S3.Region")
		required(s.S3.Bucket, "S3.Bucket")
		if (s.S3.AccessKey == "") != (s.S3.SecretKey == "") {
			sl.ReportError(s.S3.SecretKey, "S3.SecretKey", "SecretKey", "required_with", "AccessKey")
		}
	case BackendMinio:
		required(s.Minio.Endpoint, "Minio.Endpoint")
		required(s.Minio.Bucket, "Minio.Bucket")
		required(s.Minio.AccessKey, "Minio.AccessKey")
		required(s.Minio.SecretKey, "Minio.SecretKey")
	case BackendFilesystem:
		required(s.Filesystem.Path, "Filesystem.Path")
		required(s.Filesystem.PublicURL, "Filesystem.PublicURL")
	}
}
