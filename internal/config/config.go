package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Port          string
	JWTSecret     string
	PublicBaseURL string
	AdminEmail    string
	AdminPassword string
	Database      DatabaseConfig
	Storage       StorageConfig
	QR            QRConfig
	Log           LogConfig
	Server        ServerConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Silent   bool
}

// Embedded reports whether Connect should start the bundled PostgreSQL
func (c DatabaseConfig) Embedded() bool {
	return c.URL == "" && c.Host == "localhost" && c.Password == ""
}

// StorageConfig selects where proof-of-action documents live
type StorageConfig struct {
	Backend     string // local or s3
	UploadDir   string
	S3Bucket    string
	S3Prefix    string
	AWSRegion   string
	MaxUploadMB int64
}

// QRConfig holds tag and scan settings
type QRConfig struct {
	BatchLimit       int
	ScanFlagTTL      time.Duration
	HeadOfficeBranch string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "3210")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3210")
	v.SetDefault("ADMIN_EMAIL", "admin@company.com")

	v.SetDefault("PG_HOST", "localhost")
	v.SetDefault("PG_PORT", "5432")
	v.SetDefault("PG_USERNAME", "postgres")
	v.SetDefault("PG_DATABASE", "assetledger")
	v.SetDefault("DB_SILENT", false)

	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("S3_PREFIX", "proofs/")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("MAX_UPLOAD_MB", 16)

	v.SetDefault("QR_BATCH_LIMIT", 100)
	v.SetDefault("SCAN_FLAG_TTL", "0s")
	v.SetDefault("HEAD_OFFICE_BRANCH", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
}

// Load loads configuration from the environment. A .env file in the working
// directory is read first but never overrides variables already set.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)
	return v
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	jwtSecret := v.GetString("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	backend := strings.ToLower(v.GetString("STORAGE_BACKEND"))
	if backend != "local" && backend != "s3" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", backend)
	}
	if backend == "s3" && v.GetString("S3_BUCKET") == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
	}

	return &Config{
		Port:          v.GetString("PORT"),
		JWTSecret:     jwtSecret,
		PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("PG_HOST"),
			Port:     v.GetString("PG_PORT"),
			Username: v.GetString("PG_USERNAME"),
			Password: v.GetString("PG_PASSWORD"),
			Database: v.GetString("PG_DATABASE"),
			Silent:   v.GetBool("DB_SILENT"),
		},
		Storage: StorageConfig{
			Backend:     backend,
			UploadDir:   v.GetString("UPLOAD_DIR"),
			S3Bucket:    v.GetString("S3_BUCKET"),
			S3Prefix:    v.GetString("S3_PREFIX"),
			AWSRegion:   v.GetString("AWS_REGION"),
			MaxUploadMB: v.GetInt64("MAX_UPLOAD_MB"),
		},
		QR: QRConfig{
			BatchLimit:       v.GetInt("QR_BATCH_LIMIT"),
			ScanFlagTTL:      v.GetDuration("SCAN_FLAG_TTL"),
			HeadOfficeBranch: v.GetString("HEAD_OFFICE_BRANCH"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Server: ServerConfig{
			CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
