package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/your-org/vb/internal/track"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Detect   DetectConfig   `yaml:"detect"`
	Blur     BlurConfig     `yaml:"blur"`
	Tracking track.Config   `yaml:"tracking"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Encode   EncodeConfig   `yaml:"encode"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DetectConfig configures the detector collaborator. MinDetectionSize is
// forwarded to the detector and is not used by the core pipeline.
// The model toggles are pointers so an absent key and an explicit false
// are distinguishable: both models default to on, and a config without
// a detect section must never produce a pipeline that blurs nothing.
type DetectConfig struct {
	ModelsDir        string  `yaml:"models_dir"`
	Confidence       float64 `yaml:"confidence"`
	MinDetectionSize float64 `yaml:"min_detection_size"`
	DetectFaces      *bool   `yaml:"detect_faces"`
	DetectPlates     *bool   `yaml:"detect_plates"`
	Rotation         int     `yaml:"rotation"` // degrees, multiple of 90
}

// FacesEnabled reports whether the face model is on. Unset means on.
func (d DetectConfig) FacesEnabled() bool {
	return d.DetectFaces == nil || *d.DetectFaces
}

// PlatesEnabled reports whether the plate model is on. Unset means on.
func (d DetectConfig) PlatesEnabled() bool {
	return d.DetectPlates == nil || *d.DetectPlates
}

type BlurConfig struct {
	Strength   int     `yaml:"strength"`    // odd; even values are bumped
	Type       string  `yaml:"type"`        // gaussian | pixelate
	ROIPadding float64 `yaml:"roi_padding"` // region pad ratio before blurring
}

type PipelineConfig struct {
	WorkerCount       int     `yaml:"worker_count"`
	DefaultFPS        int     `yaml:"default_fps"`
	MaxFPS            int     `yaml:"max_fps"`
	FrameWidth        int     `yaml:"frame_width"`
	MaxDetectionRatio float64 `yaml:"max_detection_ratio"` // of frame extent
	ProgressEvery     int     `yaml:"progress_every"`      // frames between progress events
}

type EncodeConfig struct {
	FFmpegPath string  `yaml:"ffmpeg_path"`
	CRF        int     `yaml:"crf"`
	PitchShift float64 `yaml:"pitch_shift"` // semitones, 0 disables
	Reencode   bool    `yaml:"reencode"`
}

type StorageConfig struct {
	FrameRetention int           `yaml:"frame_retention"` // blurred preview frames kept per live stream
	AssemblePoll   time.Duration `yaml:"assemble_poll"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Detect.Confidence == 0 {
		cfg.Detect.Confidence = 0.15
	}
	if cfg.Blur.Strength == 0 {
		cfg.Blur.Strength = 51
	}
	if cfg.Blur.Type == "" {
		cfg.Blur.Type = "gaussian"
	}
	if cfg.Blur.ROIPadding == 0 {
		cfg.Blur.ROIPadding = 0.20
	}
	if cfg.Tracking.IoUThreshold == 0 {
		cfg.Tracking.IoUThreshold = 0.3
	}
	if cfg.Tracking.SmoothingAlpha == 0 {
		cfg.Tracking.SmoothingAlpha = 0.6
	}
	if cfg.Tracking.MaxLostFrames == 0 {
		cfg.Tracking.MaxLostFrames = 15
	}
	if cfg.Tracking.InflationRatio == 0 {
		cfg.Tracking.InflationRatio = 0.10
	}
	if cfg.Tracking.Matcher == "" {
		cfg.Tracking.Matcher = "greedy"
	}
	if cfg.Pipeline.WorkerCount == 0 {
		cfg.Pipeline.WorkerCount = 6
	}
	if cfg.Pipeline.DefaultFPS == 0 {
		cfg.Pipeline.DefaultFPS = 25
	}
	if cfg.Pipeline.MaxFPS == 0 {
		cfg.Pipeline.MaxFPS = 60
	}
	if cfg.Pipeline.FrameWidth == 0 {
		cfg.Pipeline.FrameWidth = 1280
	}
	if cfg.Pipeline.MaxDetectionRatio == 0 {
		cfg.Pipeline.MaxDetectionRatio = 0.35
	}
	if cfg.Pipeline.ProgressEvery == 0 {
		cfg.Pipeline.ProgressEvery = 5
	}
	if cfg.Encode.FFmpegPath == "" {
		cfg.Encode.FFmpegPath = "ffmpeg"
	}
	if cfg.Encode.CRF == 0 {
		cfg.Encode.CRF = 16
	}
	if cfg.Storage.AssemblePoll == 0 {
		cfg.Storage.AssemblePoll = 5 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VB_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VB_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("VB_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("VB_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("VB_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("VB_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("VB_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("VB_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("VB_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("VB_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("VB_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("VB_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("VB_MODELS_DIR"); v != "" {
		cfg.Detect.ModelsDir = v
	}
	if v := os.Getenv("VB_FFMPEG_PATH"); v != "" {
		cfg.Encode.FFmpegPath = v
	}
	if v := os.Getenv("VB_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.WorkerCount = n
		}
	}
}
