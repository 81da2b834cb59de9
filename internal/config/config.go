// Package config loads the immutable run configuration. It is built once in
// main and handed to every component explicitly; nothing reads it through
// global state afterwards.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Bluesky     BlueskyConfig  `mapstructure:"bluesky"`
	Location    LocationConfig `mapstructure:"location"`
	Capture     CaptureConfig  `mapstructure:"capture"`
	Video       VideoConfig    `mapstructure:"video"`
	Caption     CaptionConfig  `mapstructure:"caption"`
	Paths       PathsConfig    `mapstructure:"paths"`
	Cleanup     CleanupConfig  `mapstructure:"cleanup"`
	PublishOnly bool           `mapstructure:"publish_only"`
}

type BlueskyConfig struct {
	Handle          string `mapstructure:"handle"`
	Password        string `mapstructure:"password"`
	Server          string `mapstructure:"server"`
	VideoServer     string `mapstructure:"video_server"`
	PLCDirectory    string `mapstructure:"plc_directory"`
	MaxVideoMB      int64  `mapstructure:"max_video_mb"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec"`
	MaxPollAttempts int    `mapstructure:"max_poll_attempts"`
}

type LocationConfig struct {
	Name      string  `mapstructure:"name"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Timezone  string  `mapstructure:"timezone"`
}

type CaptureConfig struct {
	DurationMinutes int     `mapstructure:"duration_minutes"`
	Framerate       int     `mapstructure:"framerate"`
	Width           int     `mapstructure:"width"`
	Height          int     `mapstructure:"height"`
	EV              float64 `mapstructure:"ev"`
	LeadMinutes     int     `mapstructure:"start_before_sunrise_minutes"`
	PhotoTimeoutMS  int     `mapstructure:"photo_timeout_ms"`
	PhotoQuality    int     `mapstructure:"photo_quality"`
}

type VideoConfig struct {
	OutputDurationSeconds int    `mapstructure:"output_duration_seconds"`
	CRF                   int    `mapstructure:"crf"`
	Preset                string `mapstructure:"preset"`
	InputOverride         string `mapstructure:"input_override"`
}

type CaptionConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Fallback string `mapstructure:"fallback"`
}

type PathsConfig struct {
	BaseDir  string `mapstructure:"base_dir"`
	VideoDir string `mapstructure:"video_dir"`
	RawDir   string `mapstructure:"raw_dir"`
	DBPath   string `mapstructure:"db_path"`
}

type CleanupConfig struct {
	KeepDays    int  `mapstructure:"keep_days"`
	AutoCleanup bool `mapstructure:"auto_cleanup"`
}

// Load reads path (yaml) with SUNLAPSE_-prefixed env overrides. Secrets also
// honor their historical bare env names so existing deployments keep working.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("SUNLAPSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("bluesky.handle", "SUNLAPSE_BLUESKY_HANDLE", "BLUESKY_HANDLE")
	_ = v.BindEnv("bluesky.password", "SUNLAPSE_BLUESKY_PASSWORD", "BLUESKY_PASSWORD")
	_ = v.BindEnv("caption.api_key", "SUNLAPSE_CAPTION_API_KEY", "GROQ_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
		// Missing file is fine: defaults plus env are a complete config.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, "sunlapse")

	v.SetDefault("bluesky.server", "https://bsky.social")
	v.SetDefault("bluesky.video_server", "https://video.bsky.app")
	v.SetDefault("bluesky.plc_directory", "https://plc.directory")
	v.SetDefault("bluesky.max_video_mb", 50)
	v.SetDefault("bluesky.poll_interval_sec", 10)
	v.SetDefault("bluesky.max_poll_attempts", 30)

	v.SetDefault("location.name", "Southampton")
	v.SetDefault("location.latitude", 50.9097)
	v.SetDefault("location.longitude", -1.4044)
	v.SetDefault("location.timezone", "Europe/London")

	v.SetDefault("capture.duration_minutes", 75)
	v.SetDefault("capture.framerate", 1)
	v.SetDefault("capture.width", 800)
	v.SetDefault("capture.height", 800)
	v.SetDefault("capture.ev", 0.5)
	v.SetDefault("capture.start_before_sunrise_minutes", 45)
	v.SetDefault("capture.photo_timeout_ms", 2000)
	v.SetDefault("capture.photo_quality", 90)

	v.SetDefault("video.output_duration_seconds", 30)
	v.SetDefault("video.crf", 23)
	v.SetDefault("video.preset", "ultrafast")

	v.SetDefault("caption.model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("caption.fallback", "Dawn in Southampton. Again.")

	v.SetDefault("paths.base_dir", base)
	v.SetDefault("paths.video_dir", filepath.Join(base, "videos"))
	v.SetDefault("paths.raw_dir", filepath.Join(base, "raw"))
	v.SetDefault("paths.db_path", filepath.Join(base, "sunlapse.db"))

	v.SetDefault("cleanup.keep_days", 7)
	v.SetDefault("cleanup.auto_cleanup", true)
}
