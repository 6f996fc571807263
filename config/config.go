// Package config loads the daemon configuration from an optional config file
// and SAVETUBE_-prefixed environment variables, the latter winning.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// BotToken is the Telegram bot API token. Required.
	BotToken string `mapstructure:"bot_token"`

	// WorkDir holds downloads, transcodes and recognition samples.
	WorkDir string `mapstructure:"work_dir"`
	// CookieDir is the root of the identity cookie jars, laid out as
	// <CookieDir>/<kind>/<name>.txt. Empty disables stored identities.
	CookieDir string `mapstructure:"cookie_dir"`
	// HealthDBPath is the identity health database file.
	HealthDBPath string `mapstructure:"health_db_path"`

	// PoolSize caps concurrent acquisitions; 0 means scale with the host.
	PoolSize int `mapstructure:"pool_size"`

	MediaTimeout    time.Duration `mapstructure:"media_timeout"`
	FallbackTimeout time.Duration `mapstructure:"fallback_timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	MaxFileAge      time.Duration `mapstructure:"max_file_age"`

	// RecognizerURL is the music recognition endpoint; empty disables the
	// find-music flow.
	RecognizerURL   string `mapstructure:"recognizer_url"`
	RecognizerToken string `mapstructure:"recognizer_token"`

	YTDLPBin   string `mapstructure:"ytdlp_bin"`
	FFmpegBin  string `mapstructure:"ffmpeg_bin"`
	FFprobeBin string `mapstructure:"ffprobe_bin"`

	Debug bool `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot_token", "")
	v.SetDefault("work_dir", "downloads")
	v.SetDefault("cookie_dir", "")
	v.SetDefault("health_db_path", "identity-health.db")
	v.SetDefault("pool_size", 0)
	v.SetDefault("media_timeout", 90*time.Second)
	v.SetDefault("fallback_timeout", 30*time.Second)
	v.SetDefault("sweep_interval", 5*time.Minute)
	v.SetDefault("max_file_age", 30*time.Minute)
	v.SetDefault("recognizer_url", "https://api.audd.io/")
	v.SetDefault("recognizer_token", "")
	v.SetDefault("ytdlp_bin", "yt-dlp")
	v.SetDefault("ffmpeg_bin", "ffmpeg")
	v.SetDefault("ffprobe_bin", "ffprobe")
	v.SetDefault("debug", false)
}

// Load reads configuration from path (any format viper understands; optional
// when empty) layered under SAVETUBE_-prefixed environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("savetube")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("savetube")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.BotToken == "" {
		return nil, errors.New("bot_token is required (SAVETUBE_BOT_TOKEN)")
	}
	return &cfg, nil
}
