package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string        `json:"serverAddress" yaml:"serverAddress"`
	DatabasePath  string        `json:"databasePath" yaml:"databasePath"`
	DatabaseURL   string        `json:"databaseUrl" yaml:"databaseUrl"`
	Storage       Storage       `json:"storage" yaml:"storage"`
	Upload        Upload        `json:"upload" yaml:"upload"`
	Timeline      Timeline      `json:"timeline" yaml:"timeline"`
	Wedding       Wedding       `json:"wedding" yaml:"wedding"`
	Security      Security      `json:"security" yaml:"security"`
	Notifications Notifications `json:"notifications" yaml:"notifications"`
	Thumbnails    Thumbnails    `json:"thumbnails" yaml:"thumbnails"`
	Logging       Logging       `json:"logging" yaml:"logging"`
	Telemetry     Telemetry     `json:"telemetry" yaml:"telemetry"`
}

// Logging selects the log level ("debug", "info", "warn", "error") and
// format ("text" or "json")
type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Telemetry configures the OTLP exporters
type Telemetry struct {
	Enabled               bool    `json:"enabled" yaml:"enabled"`
	Endpoint              string  `json:"endpoint" yaml:"endpoint"`
	Insecure              bool    `json:"insecure" yaml:"insecure"`
	Environment           string  `json:"environment" yaml:"environment"`
	SampleRatio           float64 `json:"sampleRatio" yaml:"sampleRatio"`
	MetricIntervalSeconds int     `json:"metricIntervalSeconds" yaml:"metricIntervalSeconds"`
}

// MetricInterval returns the export period
func (t Telemetry) MetricInterval() time.Duration {
	return time.Duration(t.MetricIntervalSeconds) * time.Second
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Storage configuration for the photo bucket
type Storage struct {
	// Backend is one of local, s3, minio or gcs
	Backend         string `json:"backend" yaml:"backend"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey" yaml:"secretAccessKey"`
	// CredentialsFile is a GCS service account key
	CredentialsFile string `json:"credentialsFile" yaml:"credentialsFile"`
	PublicBaseURL   string `json:"publicBaseUrl" yaml:"publicBaseUrl"`
	LocalPath       string `json:"localPath" yaml:"localPath"`
	HistoryPrefix   string `json:"historyPrefix" yaml:"historyPrefix"`
	GuestbookPrefix string `json:"guestbookPrefix" yaml:"guestbookPrefix"`
	PageSize        int    `json:"pageSize" yaml:"pageSize"`
	WatchLocal      bool   `json:"watchLocal" yaml:"watchLocal"`
}

// Upload limits for guest photos
type Upload struct {
	MaxFileSizeMB     int64 `json:"maxFileSizeMB" yaml:"maxFileSizeMB"`
	PresignTTLMinutes int   `json:"presignTtlMinutes" yaml:"presignTtlMinutes"`
}

// MaxBytes returns the upload limit in bytes
func (u Upload) MaxBytes() int64 {
	return u.MaxFileSizeMB * 1024 * 1024
}

// PresignTTL returns how long a signed upload URL stays valid
func (u Upload) PresignTTL() time.Duration {
	return time.Duration(u.PresignTTLMinutes) * time.Minute
}

// Timeline configuration for the memory timeline viewer
type Timeline struct {
	// AxisStart is the first day of the strip, formatted 2006-01-02
	AxisStart               string  `json:"axisStart" yaml:"axisStart"`
	Timezone                string  `json:"timezone" yaml:"timezone"`
	AutoplayIntervalSeconds int     `json:"autoplayIntervalSeconds" yaml:"autoplayIntervalSeconds"`
	SwipeThreshold          float64 `json:"swipeThreshold" yaml:"swipeThreshold"`
	WindowBufferPercent     float64 `json:"windowBufferPercent" yaml:"windowBufferPercent"`
	LazyMarginPx            float64 `json:"lazyMarginPx" yaml:"lazyMarginPx"`
	ThumbWidthPx            float64 `json:"thumbWidthPx" yaml:"thumbWidthPx"`
	PreloadOriginals        bool    `json:"preloadOriginals" yaml:"preloadOriginals"`
}

// Location resolves the configured time zone
func (t Timeline) Location() (*time.Location, error) {
	if t.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(t.Timezone)
}

// Start parses AxisStart in loc
func (t Timeline) Start(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", t.AxisStart, loc)
}

// AutoplayInterval returns the delay between autoplay steps
func (t Timeline) AutoplayInterval() time.Duration {
	return time.Duration(t.AutoplayIntervalSeconds) * time.Second
}

// Wedding describes the event for calendar links
type Wedding struct {
	Title           string `json:"title" yaml:"title"`
	Description     string `json:"description" yaml:"description"`
	Venue           string `json:"venue" yaml:"venue"`
	Address         string `json:"address" yaml:"address"`
	StartsAt        string `json:"startsAt" yaml:"startsAt"`
	DurationMinutes int    `json:"durationMinutes" yaml:"durationMinutes"`
}

// Security configuration
type Security struct {
	// AdminKeyHash is a bcrypt hash of the admin key
	AdminKeyHash   string   `json:"adminKeyHash" yaml:"adminKeyHash"`
	AdminKeyHeader string   `json:"adminKeyHeader" yaml:"adminKeyHeader"`
	AllowedOrigins []string `json:"allowedOrigins" yaml:"allowedOrigins"`
}

// Notifications configuration for host push messages
type Notifications struct {
	FCMCredentialsPath string   `json:"fcmCredentialsPath" yaml:"fcmCredentialsPath"`
	HostTokens         []string `json:"hostTokens" yaml:"hostTokens"`
}

// Enabled reports whether host push notifications are configured
func (n Notifications) Enabled() bool {
	return n.FCMCredentialsPath != "" && len(n.HostTokens) > 0
}

// Thumbnails configuration
type Thumbnails struct {
	Width           int  `json:"width" yaml:"width"`
	Quality         int  `json:"quality" yaml:"quality"`
	BackfillOnStart bool `json:"backfillOnStart" yaml:"backfillOnStart"`
	BackfillWorkers int  `json:"backfillWorkers" yaml:"backfillWorkers"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "wedding.db",
		Storage: Storage{
			Backend:         "local",
			Region:          "ap-northeast-2",
			PublicBaseURL:   "/media",
			LocalPath:       "./media",
			HistoryPrefix:   "history/",
			GuestbookPrefix: "guestbook/",
			PageSize:        100,
		},
		Upload: Upload{
			MaxFileSizeMB:     10,
			PresignTTLMinutes: 15,
		},
		Timeline: Timeline{
			AxisStart:               "2023-04-01",
			Timezone:                "Asia/Seoul",
			AutoplayIntervalSeconds: 5,
			SwipeThreshold:          50,
			WindowBufferPercent:     20,
			LazyMarginPx:            100,
			ThumbWidthPx:            48,
		},
		Wedding: Wedding{
			Title:           "Wedding",
			DurationMinutes: 90,
		},
		Security: Security{
			AdminKeyHeader: "X-Admin-Key",
		},
		Thumbnails: Thumbnails{
			Width:           300,
			Quality:         80,
			BackfillWorkers: 4,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Telemetry: Telemetry{
			Enabled:               true,
			Endpoint:              "localhost:4317",
			Insecure:              true,
			Environment:           "development",
			SampleRatio:           1,
			MetricIntervalSeconds: 30,
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := decode(configPath, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.Storage.Backend, "local") || cfg.Storage.Backend == "" {
		// Ensure photo storage directory exists
		if err := os.MkdirAll(cfg.Storage.LocalPath, 0755); err != nil {
			return nil, err
		}

		absPath, err := filepath.Abs(cfg.Storage.LocalPath)
		if err != nil {
			return nil, err
		}
		cfg.Storage.LocalPath = absPath
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// applyEnv overrides file values from environment variables
func applyEnv(cfg *Config) {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	// Storage
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := os.Getenv("STORAGE_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretAccessKey = v
	}
	if v := os.Getenv("STORAGE_CREDENTIALS_FILE"); v != "" {
		cfg.Storage.CredentialsFile = v
	}
	if v := os.Getenv("STORAGE_PUBLIC_BASE_URL"); v != "" {
		cfg.Storage.PublicBaseURL = v
	}
	if v := os.Getenv("PHOTO_STORAGE_PATH"); v != "" {
		cfg.Storage.LocalPath = v
	}
	if v := os.Getenv("STORAGE_WATCH_LOCAL"); v != "" {
		cfg.Storage.WatchLocal = v == "true" || v == "1"
	}

	// Uploads
	if v := os.Getenv("UPLOAD_MAX_FILE_SIZE_MB"); v != "" {
		if mb, err := strconv.ParseInt(v, 10, 64); err == nil && mb > 0 {
			cfg.Upload.MaxFileSizeMB = mb
		}
	}

	// Timeline
	if v := os.Getenv("TIMELINE_AXIS_START"); v != "" {
		cfg.Timeline.AxisStart = v
	}
	if v := os.Getenv("TIMELINE_TIMEZONE"); v != "" {
		cfg.Timeline.Timezone = v
	}
	if v := os.Getenv("TIMELINE_AUTOPLAY_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Timeline.AutoplayIntervalSeconds = secs
		}
	}

	// Wedding
	if v := os.Getenv("WEDDING_TITLE"); v != "" {
		cfg.Wedding.Title = v
	}
	if v := os.Getenv("WEDDING_STARTS_AT"); v != "" {
		cfg.Wedding.StartsAt = v
	}
	if v := os.Getenv("WEDDING_VENUE"); v != "" {
		cfg.Wedding.Venue = v
	}

	// Security
	if v := os.Getenv("ADMIN_KEY_HASH"); v != "" {
		cfg.Security.AdminKeyHash = v
	}

	// Notifications
	if v := os.Getenv("FCM_CREDENTIALS_PATH"); v != "" {
		cfg.Notifications.FCMCredentialsPath = v
	}
	if v := os.Getenv("FCM_HOST_TOKENS"); v != "" {
		cfg.Notifications.HostTokens = splitList(v)
	}

	// Thumbnails
	if v := os.Getenv("THUMBNAIL_BACKFILL_ON_START"); v != "" {
		cfg.Thumbnails.BackfillOnStart = v == "true" || v == "1"
	}
	if v := os.Getenv("THUMBNAIL_BACKFILL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Thumbnails.BackfillWorkers = n
		}
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Telemetry
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		cfg.Telemetry.Insecure = v == "true" || v == "1"
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Telemetry.Environment = v
	}
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Telemetry.SampleRatio = r
		}
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case "", "local":
	case "s3", "minio", "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for backend %q", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("upload.maxFileSizeMB must be positive")
	}

	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sampleRatio must be within [0, 1], got %v", r)
	}

	loc, err := c.Timeline.Location()
	if err != nil {
		return fmt.Errorf("invalid timeline timezone: %w", err)
	}
	if _, err := c.Timeline.Start(loc); err != nil {
		return fmt.Errorf("invalid timeline axis start: %w", err)
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
