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

type JWTConfig struct {
	Secret         string        `yaml:"secret"`
	Issuer         string        `yaml:"issuer"`
	AccessTTL      time.Duration `yaml:"access_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`
	ResetTTL       time.Duration `yaml:"reset_ttl"`
	CookieName     string        `yaml:"cookie_name"`
	CookiePath     string        `yaml:"cookie_path"`
	CookieSecure   bool          `yaml:"cookie_secure"`
	CookieSameSite string        `yaml:"cookie_samesite"` // lax|strict|none
}

type StorageConfig struct {
	Driver          string `yaml:"driver"` // s3|gcs
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	CredentialsFile string `yaml:"credentials_file"` // gcs service account json
	PublicRead      bool   `yaml:"public_read"`

	// SignedURLTTL > 0 makes GET /jobs/:id include signed read URLs.
	SignedURLTTL time.Duration `yaml:"signed_url_ttl"`
}

type QueueConfig struct {
	Driver            string        `yaml:"driver"` // redis|rabbitmq
	Stream            string        `yaml:"stream"`
	Group             string        `yaml:"group"`
	DeadLetterStream  string        `yaml:"dead_letter_stream"`
	RabbitURL         string        `yaml:"rabbit_url"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	MaxDeliveries     int           `yaml:"max_deliveries"`
}

type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

type SchedulerConfig struct {
	Interval        time.Duration `yaml:"interval"`
	DeadLetterLimit int64         `yaml:"dead_letter_limit"`
}

type SupervisorConfig struct {
	RestartDelay time.Duration `yaml:"restart_delay"`
	WorkerBin    string        `yaml:"worker_bin"`
	SchedulerBin string        `yaml:"scheduler_bin"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type AppConfig struct {
	Port            string           `yaml:"port"`
	FrontendBaseURL string           `yaml:"frontend_base_url"`
	MaxUploadBytes  int64            `yaml:"max_upload_bytes"`
	EventTTL        time.Duration    `yaml:"event_ttl"`
	JWT             JWTConfig        `yaml:"jwt"`
	Storage         StorageConfig    `yaml:"storage"`
	Queue           QueueConfig      `yaml:"queue"`
	Worker          WorkerConfig     `yaml:"worker"`
	Scheduler       SchedulerConfig  `yaml:"scheduler"`
	Supervisor      SupervisorConfig `yaml:"supervisor"`
	SMTP            SMTPConfig       `yaml:"smtp"`
}

// Load reads .env, then the optional YAML file named by CONFIG_FILE
// (default configs/config.yaml), then applies environment overrides and defaults.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "configs/config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	envString("PORT", &cfg.Port)
	envString("FRONTEND_BASE_URL", &cfg.FrontendBaseURL)

	envString("JWT_SECRET", &cfg.JWT.Secret)
	envString("JWT_ISSUER", &cfg.JWT.Issuer)
	envString("JWT_REFRESH_COOKIE_NAME", &cfg.JWT.CookieName)
	envString("JWT_REFRESH_COOKIE_PATH", &cfg.JWT.CookiePath)
	envString("JWT_REFRESH_COOKIE_SAMESITE", &cfg.JWT.CookieSameSite)

	envString("STORAGE_DRIVER", &cfg.Storage.Driver)
	envString("STORAGE_BUCKET", &cfg.Storage.Bucket)
	envString("AWS_STORAGE_BUCKET_NAME", &cfg.Storage.Bucket)
	envString("STORAGE_REGION", &cfg.Storage.Region)
	envString("AWS_S3_REGION_NAME", &cfg.Storage.Region)
	envString("AWS_ACCESS_KEY_ID", &cfg.Storage.AccessKeyID)
	envString("AWS_SECRET_ACCESS_KEY", &cfg.Storage.SecretAccessKey)
	envString("GOOGLE_APPLICATION_CREDENTIALS", &cfg.Storage.CredentialsFile)

	envString("QUEUE_DRIVER", &cfg.Queue.Driver)
	envString("QUEUE_STREAM", &cfg.Queue.Stream)
	envString("QUEUE_GROUP", &cfg.Queue.Group)
	envString("QUEUE_DEAD_LETTER_STREAM", &cfg.Queue.DeadLetterStream)
	envString("RABBITMQ_URL", &cfg.Queue.RabbitURL)

	envString("METRICS_ADDR", &cfg.Worker.MetricsAddr)
	envString("WORKER_BIN", &cfg.Supervisor.WorkerBin)
	envString("SCHEDULER_BIN", &cfg.Supervisor.SchedulerBin)

	envString("SMTP_HOST", &cfg.SMTP.Host)
	envString("SMTP_USERNAME", &cfg.SMTP.Username)
	envString("SMTP_PASSWORD", &cfg.SMTP.Password)
	envString("DEFAULT_FROM_EMAIL", &cfg.SMTP.From)

	durations := map[string]*time.Duration{
		"JWT_ACCESS_TTL":           &cfg.JWT.AccessTTL,
		"JWT_REFRESH_TTL":          &cfg.JWT.RefreshTTL,
		"JWT_RESET_TTL":            &cfg.JWT.ResetTTL,
		"QUEUE_VISIBILITY_TIMEOUT": &cfg.Queue.VisibilityTimeout,
		"SCHEDULER_INTERVAL":       &cfg.Scheduler.Interval,
		"RESTART_DELAY":            &cfg.Supervisor.RestartDelay,
		"EVENT_TTL":                &cfg.EventTTL,
		"STORAGE_SIGNED_URL_TTL":   &cfg.Storage.SignedURLTTL,
		"WORKER_DRAIN_TIMEOUT":     &cfg.Worker.DrainTimeout,
	}
	for k, dst := range durations {
		if err := envDuration(k, dst); err != nil {
			return err
		}
	}

	ints := map[string]*int{
		"QUEUE_MAX_DELIVERIES": &cfg.Queue.MaxDeliveries,
		"WORKER_CONCURRENCY":   &cfg.Worker.Concurrency,
		"SMTP_PORT":            &cfg.SMTP.Port,
	}
	for k, dst := range ints {
		if err := envInt(k, dst); err != nil {
			return err
		}
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	if v := os.Getenv("SCHEDULER_DEAD_LETTER_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULER_DEAD_LETTER_LIMIT: %w", err)
		}
		cfg.Scheduler.DeadLetterLimit = n
	}
	if v := os.Getenv("JWT_REFRESH_COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_REFRESH_COOKIE_SECURE: %w", err)
		}
		cfg.JWT.CookieSecure = b
	}
	if v := os.Getenv("STORAGE_PUBLIC_READ"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STORAGE_PUBLIC_READ: %w", err)
		}
		cfg.Storage.PublicRead = b
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	setDefault(&cfg.Port, "8080")
	setDefault(&cfg.FrontendBaseURL, "http://localhost:3000")
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = 7 * 24 * time.Hour
	}

	setDefault(&cfg.JWT.Issuer, "sameboat")
	setDefault(&cfg.JWT.CookieName, "refresh_token")
	setDefault(&cfg.JWT.CookiePath, "/api/v1/")
	setDefault(&cfg.JWT.CookieSameSite, "lax")
	if cfg.JWT.AccessTTL <= 0 {
		cfg.JWT.AccessTTL = 15 * time.Minute
	}
	if cfg.JWT.RefreshTTL <= 0 {
		cfg.JWT.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.JWT.ResetTTL <= 0 {
		cfg.JWT.ResetTTL = 15 * time.Minute
	}

	setDefault(&cfg.Storage.Driver, "s3")

	setDefault(&cfg.Queue.Driver, "redis")
	setDefault(&cfg.Queue.Stream, "attachments:stream")
	setDefault(&cfg.Queue.Group, "attachment-workers")
	setDefault(&cfg.Queue.DeadLetterStream, "attachments:dead")
	if cfg.Queue.VisibilityTimeout <= 0 {
		cfg.Queue.VisibilityTimeout = 5 * time.Minute
	}
	if cfg.Queue.MaxDeliveries <= 0 {
		cfg.Queue.MaxDeliveries = 5
	}

	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 4
	}
	setDefault(&cfg.Worker.MetricsAddr, ":9091")
	if cfg.Worker.DrainTimeout <= 0 {
		cfg.Worker.DrainTimeout = 30 * time.Second
	}

	if cfg.Scheduler.Interval <= 0 {
		cfg.Scheduler.Interval = time.Minute
	}
	if cfg.Scheduler.DeadLetterLimit <= 0 {
		cfg.Scheduler.DeadLetterLimit = 10000
	}

	if cfg.Supervisor.RestartDelay <= 0 {
		cfg.Supervisor.RestartDelay = 60 * time.Second
	}
	setDefault(&cfg.Supervisor.WorkerBin, "./worker")
	setDefault(&cfg.Supervisor.SchedulerBin, "./scheduler")

	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	setDefault(&cfg.SMTP.From, "SameBoat <no-reply@sameboat.app>")
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
