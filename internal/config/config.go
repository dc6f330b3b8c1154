package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	DB         DB         `yaml:"db"`
	Detection  Detection  `yaml:"detection"`
	Compliance Compliance `yaml:"compliance"`
	Camera     Camera     `yaml:"camera"`
	Recording  Recording  `yaml:"recording"`
	Alerts     Alerts     `yaml:"alerts"`
	Stream     Stream     `yaml:"stream"`
	S3         S3         `yaml:"s3"`
	Kafka      Kafka      `yaml:"kafka"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	Secret      string        `yaml:"secret" env:"JWT_SECRET"`
	TokenTTL    time.Duration `yaml:"token_ttl" env-default:"12h"`
}

// DB is optional: alerts fall back to an in-memory store when Host is empty.
type DB struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	Username string `yaml:"username" env:"POSTGRES_USER" env-default:"postgres"`
	Password string `yaml:"-" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"ppe_monitor"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

func (db DB) Enabled() bool {
	return db.Host != ""
}

type Detection struct {
	Endpoint      string        `yaml:"endpoint" env:"DETECTION_ENDPOINT" env-default:"http://localhost:8000"`
	Timeout       time.Duration `yaml:"timeout" env-default:"2s"`
	ConfThreshold float64       `yaml:"conf_threshold" env-default:"0.25"`
	IoUThreshold  float64       `yaml:"iou_threshold" env-default:"0.45"`
	// Labels overrides the vocabulary reported by the model server.
	Labels []string `yaml:"labels" env:"DETECTION_LABELS" env-separator:","`
}

type Compliance struct {
	PersonLabel   string            `yaml:"person_label" env:"PERSON_LABEL" env-default:"person"`
	RequiredItems []string          `yaml:"required_items" env:"REQUIRED_ITEMS" env-separator:"," env-default:"helmet,vest,boots"`
	DisplayNames  map[string]string `yaml:"display_names"`
}

type Camera struct {
	DeviceIndices  []int         `yaml:"device_indices" env-separator:"," env-default:"0,1,-1"`
	NetworkAddress string        `yaml:"network_address" env:"CAMERA_ADDRESS" env-default:"192.168.1.100"`
	NetworkPort    string        `yaml:"network_port" env:"CAMERA_PORT" env-default:"4747"`
	NetworkPath    string        `yaml:"network_path" env-default:"/video"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env-default:"5s"`
}

type Recording struct {
	Dir         string        `yaml:"dir" env:"RECORDINGS_DIR" env-default:"grabaciones"`
	Container   string        `yaml:"container" env-default:"avi"`
	Codec       string        `yaml:"codec" env-default:"XVID"`
	FPS         float64       `yaml:"fps" env-default:"20"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"5s"`
	MediaURL    string        `yaml:"media_url" env-default:"/media/"`
}

type Alerts struct {
	ThrottleWindow time.Duration `yaml:"throttle_window" env-default:"10s"`
	PersistTimeout time.Duration `yaml:"persist_timeout" env-default:"2s"`
	QueryWindow    time.Duration `yaml:"query_window" env-default:"24h"`
	LatestLimit    int           `yaml:"latest_limit" env-default:"10"`
}

type Stream struct {
	FrameInterval     time.Duration `yaml:"frame_interval" env-default:"50ms"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval" env-default:"5s"`
	JPEGQuality       int           `yaml:"jpeg_quality" env-default:"80"`
	Headless          bool          `yaml:"headless" env:"STREAM_HEADLESS"`
}

// S3 is optional: finalized recordings stay on disk when Endpoint is empty.
type S3 struct {
	Endpoint   string        `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey  string        `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey  string        `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket     string        `yaml:"bucket" env:"MINIO_BUCKET" env-default:"recordings"`
	UseSSL     bool          `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	PresignTTL time.Duration `yaml:"presign_ttl" env-default:"30m"`
}

func (s S3) Enabled() bool {
	return s.Endpoint != ""
}

// Kafka is optional: alert events are not published when Brokers is empty.
type Kafka struct {
	Brokers    []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	AlertTopic string   `yaml:"alert_topic" env:"KAFKA_ALERT_TOPIC" env-default:"ppe-alerts"`
}

func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Compliance.PersonLabel == "" {
		return fmt.Errorf("compliance.person_label is required")
	}
	if len(c.Compliance.RequiredItems) == 0 {
		return fmt.Errorf("compliance.required_items must not be empty")
	}
	if c.Detection.ConfThreshold < 0 || c.Detection.ConfThreshold > 1 {
		return fmt.Errorf("detection.conf_threshold must be in [0,1], got %v", c.Detection.ConfThreshold)
	}
	if c.Detection.IoUThreshold < 0 || c.Detection.IoUThreshold > 1 {
		return fmt.Errorf("detection.iou_threshold must be in [0,1], got %v", c.Detection.IoUThreshold)
	}
	if c.Recording.FPS <= 0 {
		return fmt.Errorf("recording.fps must be positive")
	}
	if c.Stream.FrameInterval <= 0 {
		return fmt.Errorf("stream.frame_interval must be positive, got %v", c.Stream.FrameInterval)
	}
	if c.Stream.KeepaliveInterval <= 0 {
		return fmt.Errorf("stream.keepalive_interval must be positive, got %v", c.Stream.KeepaliveInterval)
	}
	if c.Alerts.PersistTimeout <= 0 {
		return fmt.Errorf("alerts.persist_timeout must be positive, got %v", c.Alerts.PersistTimeout)
	}
	if len(c.Camera.DeviceIndices) == 0 {
		return fmt.Errorf("camera.device_indices must not be empty")
	}

	return nil
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
