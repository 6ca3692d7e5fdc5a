package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/passport-photo/internal/transform"
)

// Config is read once at process start and never reloaded.
type Config struct {
	CloudName string `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	APISecret string `mapstructure:"CLOUDINARY_API_SECRET"`

	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	Debug    bool   `mapstructure:"DEBUG"`

	Profile         string `mapstructure:"PROFILE"`
	EagerProfile    string `mapstructure:"EAGER_PROFILE"`
	UploadFolder    string `mapstructure:"UPLOAD_FOLDER"`
	DeliveryBaseURL string `mapstructure:"DELIVERY_BASE_URL"`

	PollInterval    time.Duration `mapstructure:"POLL_INTERVAL"`
	PollMaxAttempts int           `mapstructure:"POLL_MAX_ATTEMPTS"`
	PollDeadline    time.Duration `mapstructure:"POLL_DEADLINE"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	ReadyCacheTTL time.Duration `mapstructure:"READY_CACHE_TTL"`

	MaxUploadBytes      int64  `mapstructure:"MAX_UPLOAD_BYTES"`
	UploadRatePerMinute int    `mapstructure:"UPLOAD_RATE_PER_MINUTE"`
	UploadRateBurst     int    `mapstructure:"UPLOAD_RATE_BURST"`
	CORSAllowOrigins    string `mapstructure:"CORS_ALLOW_ORIGINS"`
}

var defaults = map[string]any{
	"HTTP_ADDR":              ":8080",
	"GRPC_ADDR":              ":9090",
	"DEBUG":                  false,
	"PROFILE":                transform.DefaultProfile,
	"EAGER_PROFILE":          "",
	"UPLOAD_FOLDER":          "passport-photos",
	"DELIVERY_BASE_URL":      "https://res.cloudinary.com",
	"POLL_INTERVAL":          "2s",
	"POLL_MAX_ATTEMPTS":      60,
	"POLL_DEADLINE":          "3m",
	"REDIS_ADDR":             "",
	"READY_CACHE_TTL":        "10m",
	"MAX_UPLOAD_BYTES":       10 << 20,
	"UPLOAD_RATE_PER_MINUTE": 30,
	"UPLOAD_RATE_BURST":      5,
	"CORS_ALLOW_ORIGINS":     "*",
}

var secretKeys = []string{"CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET"}

// Load reads the environment, preceded by a local .env file when one exists.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for _, k := range secretKeys {
		_ = v.BindEnv(k)
	}
	for k, value := range defaults {
		_ = v.BindEnv(k)
		v.SetDefault(k, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if cfg.EagerProfile == "" {
		cfg.EagerProfile = cfg.Profile
	}
	return &cfg, nil
}

// Validate fails fast on anything that would otherwise break the first provider call.
func (c *Config) Validate() error {
	var errs []error
	if c.CloudName == "" {
		errs = append(errs, errors.New("CLOUDINARY_CLOUD_NAME is required"))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("CLOUDINARY_API_KEY is required"))
	}
	if c.APISecret == "" {
		errs = append(errs, errors.New("CLOUDINARY_API_SECRET is required"))
	}
	if _, err := transform.Lookup(c.Profile); err != nil {
		errs = append(errs, fmt.Errorf("PROFILE: %w", err))
	}
	if c.EagerProfile != c.Profile {
		errs = append(errs, fmt.Errorf("EAGER_PROFILE %q diverges from PROFILE %q: uploads and derived urls must use one profile", c.EagerProfile, c.Profile))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.PollMaxAttempts < 0 || c.PollDeadline < 0 {
		errs = append(errs, errors.New("POLL_MAX_ATTEMPTS and POLL_DEADLINE must not be negative"))
	}
	if c.PollMaxAttempts == 0 && c.PollDeadline == 0 {
		errs = append(errs, errors.New("one of POLL_MAX_ATTEMPTS or POLL_DEADLINE is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// ActiveProfile resolves the configured profile.
func (c *Config) ActiveProfile() (transform.Profile, error) {
	return transform.Lookup(c.Profile)
}

// AllowedOrigins splits CORS_ALLOW_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// String masks credentials.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  CloudName: %s\n", c.CloudName)
	fmt.Fprintf(&sb, "  APIKey: %s\n", mask(c.APIKey))
	fmt.Fprintf(&sb, "  APISecret: %s\n", mask(c.APISecret))
	fmt.Fprintf(&sb, "  HTTPAddr: %s\n", c.HTTPAddr)
	fmt.Fprintf(&sb, "  GRPCAddr: %s\n", c.GRPCAddr)
	fmt.Fprintf(&sb, "  Profile: %s (eager %s)\n", c.Profile, c.EagerProfile)
	fmt.Fprintf(&sb, "  UploadFolder: %s\n", c.UploadFolder)
	fmt.Fprintf(&sb, "  DeliveryBaseURL: %s\n", c.DeliveryBaseURL)
	fmt.Fprintf(&sb, "  Poll: every %s, max %d attempts, deadline %s\n", c.PollInterval, c.PollMaxAttempts, c.PollDeadline)
	if c.RedisAddr != "" {
		fmt.Fprintf(&sb, "  ReadyCache: redis %s ttl %s\n", c.RedisAddr, c.ReadyCacheTTL)
	} else {
		fmt.Fprintf(&sb, "  ReadyCache: in-process ttl %s\n", c.ReadyCacheTTL)
	}
	fmt.Fprintf(&sb, "  MaxUploadBytes: %d\n", c.MaxUploadBytes)
	fmt.Fprintf(&sb, "  UploadRate: %d/min burst %d\n", c.UploadRatePerMinute, c.UploadRateBurst)
	return sb.String()
}

func mask(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	return "********"
}
