package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the process-wide settings. It is loaded once at startup and
// passed explicitly to the components that need it.
type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	JWTSecretKey             string `mapstructure:"JWT_SECRET_KEY"`
	JWTAlgorithm             string `mapstructure:"JWT_ALGORITHM"`
	AccessTokenExpireMinutes int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	AdminUsername            string `mapstructure:"ADMIN_USERNAME"`
	AdminPassword            string `mapstructure:"ADMIN_PASSWORD"`

	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
	MaxFileSize         int64    `mapstructure:"MAX_FILE_SIZE"`
	AllowedExtensions   []string `mapstructure:"ALLOWED_EXTENSIONS"`
	ConfidenceThreshold float64  `mapstructure:"CONFIDENCE_THRESHOLD"`

	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`
	JobSoftTimeLimit  time.Duration `mapstructure:"JOB_SOFT_TIME_LIMIT"`
	JobHardTimeLimit  time.Duration `mapstructure:"JOB_HARD_TIME_LIMIT"`
	JobMaxRetries     int           `mapstructure:"JOB_MAX_RETRIES"`
	ResultTTL         time.Duration `mapstructure:"RESULT_TTL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "admin123")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MAX_FILE_SIZE", 104857600)
	v.SetDefault("ALLOWED_EXTENSIONS", "dcm,dicom,jpg,jpeg,png")
	v.SetDefault("CONFIDENCE_THRESHOLD", 0.5)
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("JOB_SOFT_TIME_LIMIT", "25m")
	v.SetDefault("JOB_HARD_TIME_LIMIT", "30m")
	v.SetDefault("JOB_MAX_RETRIES", 3)
	v.SetDefault("RESULT_TTL", "24h")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"REDIS_URL", "JWT_SECRET_KEY", "JWT_ALGORITHM",
		"ACCESS_TOKEN_EXPIRE_MINUTES", "ADMIN_USERNAME", "ADMIN_PASSWORD",
		"CORS_ORIGINS", "MAX_FILE_SIZE", "ALLOWED_EXTENSIONS",
		"CONFIDENCE_THRESHOLD", "WORKER_CONCURRENCY",
		"JOB_SOFT_TIME_LIMIT", "JOB_HARD_TIME_LIMIT", "JOB_MAX_RETRIES",
		"RESULT_TTL",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.AllowedExtensions == nil {
		if exts := v.GetString("ALLOWED_EXTENSIONS"); exts != "" {
			cfg.AllowedExtensions = strings.Split(exts, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecretKey == "" {
		cfg.JWTSecretKey = "dev-only-insecure-secret"
		log.Println("WARNING: JWT_SECRET_KEY not set; using an insecure development key.")
		log.Println("WARNING: Set JWT_SECRET_KEY before running outside development.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AccessTokenTTL returns the configured access token lifetime.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// Validate checks that the configuration is safe to run. Outside development
// a real JWT secret is required, and the worker time limits must be coherent:
// the soft limit warns and requests graceful termination, the hard limit
// cancels the job context, so soft must not exceed hard.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required when ENV=%q", c.Env)
	}
	if c.JWTAlgorithm != "HS256" && c.JWTAlgorithm != "HS384" && c.JWTAlgorithm != "HS512" {
		return fmt.Errorf("JWT_ALGORITHM must be one of HS256, HS384, HS512, got %q", c.JWTAlgorithm)
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenExpireMinutes)
	}
	if c.JobSoftTimeLimit <= 0 || c.JobHardTimeLimit <= 0 {
		return fmt.Errorf("job time limits must be positive (soft=%s hard=%s)", c.JobSoftTimeLimit, c.JobHardTimeLimit)
	}
	if c.JobSoftTimeLimit > c.JobHardTimeLimit {
		return fmt.Errorf("JOB_SOFT_TIME_LIMIT (%s) must not exceed JOB_HARD_TIME_LIMIT (%s)",
			c.JobSoftTimeLimit, c.JobHardTimeLimit)
	}
	if c.JobMaxRetries < 0 {
		return fmt.Errorf("JOB_MAX_RETRIES must not be negative, got %d", c.JobMaxRetries)
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	return nil
}
