package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppConfig is the whole client configuration.
type AppConfig struct {
	API    APIConfig    `mapstructure:"api" validate:"required"`
	Audio  AudioConfig  `mapstructure:"audio" validate:"required"`
	FFmpeg FFmpegConfig `mapstructure:"ffmpeg" validate:"required"`
	Policy PolicyConfig `mapstructure:"policy" validate:"required"`
	Store  StoreConfig  `mapstructure:"store" validate:"required"`
	Log    LogConfig    `mapstructure:"log" validate:"required"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"required"`
	RetryWait  time.Duration `mapstructure:"retry_wait"`
	RetryCount int           `mapstructure:"retry_count" validate:"gte=0,lte=3"`
}

type AudioConfig struct {
	SampleRate    int           `mapstructure:"sample_rate" validate:"required,gte=8000"`
	SessionDir    string        `mapstructure:"session_dir" validate:"required"`
	MeterInterval time.Duration `mapstructure:"meter_interval" validate:"required"`
}

type FFmpegConfig struct {
	Path    string        `mapstructure:"path" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`
}

// PolicyConfig holds the recording length rules.
type PolicyConfig struct {
	MinSeconds  int           `mapstructure:"min_seconds" validate:"gte=0"`
	MaxSeconds  int           `mapstructure:"max_seconds" validate:"required,gtfield=MinSeconds"`
	WarnSeconds int           `mapstructure:"warn_seconds" validate:"gte=0"`
	Tick        time.Duration `mapstructure:"tick" validate:"required"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"required"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver" validate:"required,oneof=sqlite redis"`
	Path      string `mapstructure:"path" validate:"required_if=Driver sqlite"`
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisDB   int    `mapstructure:"redis_db"`
}

type LogConfig struct {
	File       string `mapstructure:"file" validate:"required"`
	Level      string `mapstructure:"level" validate:"required"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type OpenAIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

// InitConfig reads the env-format config file (if any) and the HYO_ environment.
// Nested keys use "__", e.g. HYO_API__BASE_URL.
func InitConfig(path string) (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))

	v.SetConfigType("env")
	if path == "" {
		path = os.Getenv("HYO_ENV_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".env")
	}
	v.SetEnvPrefix("HYO")
	v.AutomaticEnv()

	setDefault(v)

	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件时只用环境变量和默认值
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return v, nil
}

func setDefault(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".hearyouout")

	v.SetDefault("API__BASE_URL", "https://hearyouout.deta.dev")
	v.SetDefault("API__TIMEOUT", 30*time.Second)
	v.SetDefault("API__RETRY_WAIT", 500*time.Millisecond)
	v.SetDefault("API__RETRY_COUNT", 1)

	v.SetDefault("AUDIO__SAMPLE_RATE", 16000)
	v.SetDefault("AUDIO__SESSION_DIR", filepath.Join(dataDir, "session"))
	v.SetDefault("AUDIO__METER_INTERVAL", 100*time.Millisecond)

	v.SetDefault("FFMPEG__PATH", "ffmpeg")
	v.SetDefault("FFMPEG__TIMEOUT", 60*time.Second)

	v.SetDefault("POLICY__MIN_SECONDS", 15)
	v.SetDefault("POLICY__MAX_SECONDS", 300)
	v.SetDefault("POLICY__WARN_SECONDS", 240)
	v.SetDefault("POLICY__TICK", time.Second)
	v.SetDefault("POLICY__RETRY_DELAY", 100*time.Millisecond)

	v.SetDefault("STORE__DRIVER", "sqlite")
	v.SetDefault("STORE__PATH", filepath.Join(dataDir, "prefs.sqlite"))
	v.SetDefault("STORE__REDIS_ADDR", "")
	v.SetDefault("STORE__REDIS_DB", 0)

	v.SetDefault("LOG__FILE", filepath.Join(dataDir, "client.log"))
	v.SetDefault("LOG__LEVEL", "info")
	v.SetDefault("LOG__MAX_SIZE_MB", 10)
	v.SetDefault("LOG__MAX_BACKUPS", 3)

	v.SetDefault("OPENAI__API_KEY", "")
	v.SetDefault("OPENAI__MODEL", "whisper-1")
	v.SetDefault("OPENAI__LANGUAGE", "en")
}

// GetApplicationConfig unmarshals and validates the configuration.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Load is InitConfig followed by GetApplicationConfig.
func Load(path string) (*AppConfig, error) {
	v, err := InitConfig(path)
	if err != nil {
		return nil, err
	}
	return GetApplicationConfig(v)
}
