package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the detector. Durations are kept in
// milliseconds so they map one-to-one onto env and TOML keys.
type Config struct {
	Port         int    `toml:"port"`
	Password     string `toml:"password"` // empty disables the login gate
	LogDirectory string `toml:"log_dir"`
	StaticDir    string `toml:"static_dir"`

	// Analysis pipeline timing.
	ProgressIntervalMs int     `toml:"progress_interval_ms"`
	ProgressStepMax    float64 `toml:"progress_step_max"`
	ProgressCap        float64 `toml:"progress_cap"`
	JobMinMs           int     `toml:"job_min_ms"`
	JobMaxMs           int     `toml:"job_max_ms"`

	// Camera acquisition.
	VideoReadyTimeoutMs int `toml:"video_ready_timeout_ms"`
	FallbackDelayMs     int `toml:"fallback_delay_ms"`
	CameraFrontID       int `toml:"camera_front_id"`
	CameraBackID        int `toml:"camera_back_id"`
	CameraWidth         int `toml:"camera_width"`
	CameraHeight        int `toml:"camera_height"`
}

// Default returns the values the detector ships with.
func Default() *Config {
	return &Config{
		Port:                8080,
		LogDirectory:        filepath.Join(".", "logs"),
		StaticDir:           filepath.Join(".", "static"),
		ProgressIntervalMs:  150,
		ProgressStepMax:     15,
		ProgressCap:         95,
		JobMinMs:            2000,
		JobMaxMs:            3000,
		VideoReadyTimeoutMs: 5000,
		FallbackDelayMs:     1000,
		CameraFrontID:       0,
		CameraBackID:        1,
		CameraWidth:         1280,
		CameraHeight:        720,
	}
}

// Load reads .env (if present), then the optional TOML file named by
// CONFIG_FILE, then the process environment. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decoding config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s: unknown keys %v", path, undecoded)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.Password = getEnv("PASSWORD", c.Password)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)

	c.ProgressIntervalMs = getEnvAsInt("PROGRESS_INTERVAL_MS", c.ProgressIntervalMs)
	c.ProgressStepMax = getEnvAsFloat("PROGRESS_STEP_MAX", c.ProgressStepMax)
	c.ProgressCap = getEnvAsFloat("PROGRESS_CAP", c.ProgressCap)
	c.JobMinMs = getEnvAsInt("JOB_MIN_MS", c.JobMinMs)
	c.JobMaxMs = getEnvAsInt("JOB_MAX_MS", c.JobMaxMs)

	c.VideoReadyTimeoutMs = getEnvAsInt("VIDEO_READY_TIMEOUT_MS", c.VideoReadyTimeoutMs)
	c.FallbackDelayMs = getEnvAsInt("FALLBACK_DELAY_MS", c.FallbackDelayMs)
	c.CameraFrontID = getEnvAsInt("CAMERA_FRONT_ID", c.CameraFrontID)
	c.CameraBackID = getEnvAsInt("CAMERA_BACK_ID", c.CameraBackID)
	c.CameraWidth = getEnvAsInt("CAMERA_WIDTH", c.CameraWidth)
	c.CameraHeight = getEnvAsInt("CAMERA_HEIGHT", c.CameraHeight)
}

// Validate rejects timings the pipeline and camera cannot honor.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: invalid port %d", c.Port)
	case c.ProgressIntervalMs <= 0:
		return fmt.Errorf("config: progress interval must be positive, got %dms", c.ProgressIntervalMs)
	case c.ProgressCap <= 0 || c.ProgressCap >= 100:
		return fmt.Errorf("config: progress cap must be in (0,100), got %.1f", c.ProgressCap)
	case c.ProgressStepMax < 0:
		return fmt.Errorf("config: progress step must not be negative, got %.1f", c.ProgressStepMax)
	case c.JobMinMs <= 0 || c.JobMaxMs < c.JobMinMs:
		return fmt.Errorf("config: job duration range [%d,%d]ms is invalid", c.JobMinMs, c.JobMaxMs)
	case c.VideoReadyTimeoutMs <= 0:
		return fmt.Errorf("config: video ready timeout must be positive, got %dms", c.VideoReadyTimeoutMs)
	case c.FallbackDelayMs < 0:
		return fmt.Errorf("config: fallback delay must not be negative, got %dms", c.FallbackDelayMs)
	case c.CameraWidth <= 0 || c.CameraHeight <= 0:
		return fmt.Errorf("config: invalid camera resolution %dx%d", c.CameraWidth, c.CameraHeight)
	}
	return nil
}

func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalMs) * time.Millisecond
}

func (c *Config) JobMinDuration() time.Duration {
	return time.Duration(c.JobMinMs) * time.Millisecond
}

func (c *Config) JobMaxDuration() time.Duration {
	return time.Duration(c.JobMaxMs) * time.Millisecond
}

func (c *Config) VideoReadyTimeout() time.Duration {
	return time.Duration(c.VideoReadyTimeoutMs) * time.Millisecond
}

func (c *Config) FallbackDelay() time.Duration {
	return time.Duration(c.FallbackDelayMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
