package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
// Values come from three layers, later layers winning: built-in
// defaults, an optional TOML file, and environment variables.
//
// Environment Variables:
// Transcriber:
// - TRANSCRIBE_API_URL: speech-to-text service endpoint (required)
// - TRANSCRIBE_API_TOKEN: bearer token for the service (required)
// - TRANSCRIBE_POLL_INTERVAL: seconds between job polls (default: 0.5)
// - TRANSCRIBE_POLL_TIMEOUT: minutes before a job poll gives up,
//   0 disables the deadline (default: 120)
//
// Translator:
// - TRANSLATE_API_URL: translation service endpoint
// - TRANSLATE_API_KEY: translation auth key
//
// Storage:
// - STORAGE_ENDPOINT: artifact store upload endpoint (required)
// - STORAGE_TOKEN: bearer token for uploads
// - STORAGE_PUBLIC_URL: public base URL artifacts are served from
//
// Display:
// - DISPLAY_ENDPOINT: web player registration endpoint
// - DISPLAY_RESULT_BASE: base URL of generated watch pages
// - DISPLAY_TOKEN: bearer token for registrations
//
// Media:
// - FFMPEG_PATH / FFPROBE_PATH: encoder binaries (default: from PATH)
// - WATERMARK_PATH: logo overlaid during burn-in
// - FONT_NAME: subtitle font (default: ProbaPro-Bold)
//
// Pipeline:
// - WORK_ROOT: job working directory root (default: /tmp/subgen)
// - JANITOR_SCHEDULE: cron expression for stale dir sweeps (default: @hourly)
// - JANITOR_MAX_AGE: hours before an orphaned work dir is swept (default: 2)
// - CREDIT_TEXT: trailing credit cue text
//
// Server:
// - HTTP_ADDR: API listen address (default: :8080)
// - CORS_ORIGIN: allowed browser origin (default: *)
//
// System:
// - DATA_DIR: sqlite database directory (default: /data)
// - LOCK_FILE: single-instance lock path (default: <DATA_DIR>/subgen.lock)
// - LOG_LEVEL: debug, info, warn or error (default: info)

type Config struct {
	Transcriber TranscriberConfig `toml:"transcriber"`
	Translator  TranslatorConfig  `toml:"translator"`
	Storage     StorageConfig     `toml:"storage"`
	Display     DisplayConfig     `toml:"display"`
	Media       MediaConfig       `toml:"media"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Server      ServerConfig      `toml:"server"`
	System      SystemConfig      `toml:"system"`
}

// TranscriberConfig holds the remote speech-to-text service settings.
type TranscriberConfig struct {
	APIURL              string  `toml:"api_url"`
	APIToken            string  `toml:"api_token"`
	PollIntervalSeconds float64 `toml:"poll_interval_seconds"`
	PollTimeoutMinutes  int     `toml:"poll_timeout_minutes"`
}

func (c TranscriberConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds * float64(time.Second))
}

func (c TranscriberConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMinutes) * time.Minute
}

type TranslatorConfig struct {
	APIURL string `toml:"api_url"`
	APIKey string `toml:"api_key"`
}

type StorageConfig struct {
	Endpoint  string `toml:"endpoint"`
	Token     string `toml:"token"`
	PublicURL string `toml:"public_url"`
}

type DisplayConfig struct {
	Endpoint   string `toml:"endpoint"`
	ResultBase string `toml:"result_base"`
	Token      string `toml:"token"`
}

type MediaConfig struct {
	FFmpegPath    string `toml:"ffmpeg_path"`
	FFprobePath   string `toml:"ffprobe_path"`
	WatermarkPath string `toml:"watermark_path"`
	FontName      string `toml:"font_name"`
}

type PipelineConfig struct {
	WorkRoot        string `toml:"work_root"`
	JanitorSchedule string `toml:"janitor_schedule"`
	JanitorMaxAgeH  int    `toml:"janitor_max_age_hours"`
	CreditText      string `toml:"credit_text"`
}

func (c PipelineConfig) JanitorMaxAge() time.Duration {
	return time.Duration(c.JanitorMaxAgeH) * time.Hour
}

type ServerConfig struct {
	HTTPAddr   string `toml:"http_addr"`
	CORSOrigin string `toml:"cors_origin"`
}

type SystemConfig struct {
	DataDir  string `toml:"data_dir"`
	LockFile string `toml:"lock_file"`
	LogLevel string `toml:"log_level"`
}

// Option is a function type for adjusting Config after loading.
type Option func(*Config)

// Load builds the configuration from defaults, the TOML file at path
// (skipped when path is empty or missing) and environment variables.
func Load(path string, opts ...Option) (*Config, error) {
	config := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// env-only deployments run without a file
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnv(config)

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	return &Config{
		Transcriber: TranscriberConfig{
			PollIntervalSeconds: 0.5,
			PollTimeoutMinutes:  120,
		},
		Media: MediaConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			FontName:    "ProbaPro-Bold",
		},
		Pipeline: PipelineConfig{
			WorkRoot:        "/tmp/subgen",
			JanitorSchedule: "@hourly",
			JanitorMaxAgeH:  2,
		},
		Server: ServerConfig{
			HTTPAddr:   ":8080",
			CORSOrigin: "*",
		},
		System: SystemConfig{
			DataDir:  "/data",
			LogLevel: "info",
		},
	}
}

func applyEnv(c *Config) {
	c.Transcriber.APIURL = getEnvString("TRANSCRIBE_API_URL", c.Transcriber.APIURL)
	c.Transcriber.APIToken = getEnvString("TRANSCRIBE_API_TOKEN", c.Transcriber.APIToken)
	c.Transcriber.PollIntervalSeconds = getEnvFloat("TRANSCRIBE_POLL_INTERVAL", c.Transcriber.PollIntervalSeconds)
	c.Transcriber.PollTimeoutMinutes = getEnvInt("TRANSCRIBE_POLL_TIMEOUT", c.Transcriber.PollTimeoutMinutes)

	c.Translator.APIURL = getEnvString("TRANSLATE_API_URL", c.Translator.APIURL)
	c.Translator.APIKey = getEnvString("TRANSLATE_API_KEY", c.Translator.APIKey)

	c.Storage.Endpoint = getEnvString("STORAGE_ENDPOINT", c.Storage.Endpoint)
	c.Storage.Token = getEnvString("STORAGE_TOKEN", c.Storage.Token)
	c.Storage.PublicURL = getEnvString("STORAGE_PUBLIC_URL", c.Storage.PublicURL)

	c.Display.Endpoint = getEnvString("DISPLAY_ENDPOINT", c.Display.Endpoint)
	c.Display.ResultBase = getEnvString("DISPLAY_RESULT_BASE", c.Display.ResultBase)
	c.Display.Token = getEnvString("DISPLAY_TOKEN", c.Display.Token)

	c.Media.FFmpegPath = getEnvString("FFMPEG_PATH", c.Media.FFmpegPath)
	c.Media.FFprobePath = getEnvString("FFPROBE_PATH", c.Media.FFprobePath)
	c.Media.WatermarkPath = getEnvString("WATERMARK_PATH", c.Media.WatermarkPath)
	c.Media.FontName = getEnvString("FONT_NAME", c.Media.FontName)

	c.Pipeline.WorkRoot = getEnvString("WORK_ROOT", c.Pipeline.WorkRoot)
	c.Pipeline.JanitorSchedule = getEnvString("JANITOR_SCHEDULE", c.Pipeline.JanitorSchedule)
	c.Pipeline.JanitorMaxAgeH = getEnvInt("JANITOR_MAX_AGE", c.Pipeline.JanitorMaxAgeH)
	c.Pipeline.CreditText = getEnvString("CREDIT_TEXT", c.Pipeline.CreditText)

	c.Server.HTTPAddr = getEnvString("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.CORSOrigin = getEnvString("CORS_ORIGIN", c.Server.CORSOrigin)

	c.System.DataDir = getEnvString("DATA_DIR", c.System.DataDir)
	c.System.LockFile = getEnvString("LOCK_FILE", c.System.LockFile)
	c.System.LogLevel = getEnvString("LOG_LEVEL", c.System.LogLevel)
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Transcriber.APIURL == "" {
		return fmt.Errorf("TRANSCRIBE_API_URL is required")
	}
	if c.Transcriber.APIToken == "" {
		return fmt.Errorf("TRANSCRIBE_API_TOKEN is required")
	}
	if c.Storage.Endpoint == "" {
		return fmt.Errorf("STORAGE_ENDPOINT is required")
	}
	if c.Transcriber.PollIntervalSeconds <= 0 {
		return fmt.Errorf("TRANSCRIBE_POLL_INTERVAL must be positive")
	}
	if c.Transcriber.PollTimeoutMinutes < 0 {
		return fmt.Errorf("TRANSCRIBE_POLL_TIMEOUT must not be negative")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
