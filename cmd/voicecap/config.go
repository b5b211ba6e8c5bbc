package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lisuiheng/voicecap/core"
	"github.com/lisuiheng/voicecap/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config 对应 config.yaml 的结构
type Config struct {
	Audio struct {
		core.CaptureConfig `mapstructure:",squash"`
		Backend            string `mapstructure:"backend"`
	} `mapstructure:"audio"`

	Output struct {
		// Target 文件路径，或 ws:// / wss:// 地址
		Target   string        `mapstructure:"target"`
		Format   string        `mapstructure:"format"` // ogg/raw
		Duration time.Duration `mapstructure:"duration"`

		Websocket struct {
			AccessToken  string        `mapstructure:"access_token"`
			DeviceID     string        `mapstructure:"device_id"`
			ClientID     string        `mapstructure:"client_id"`
			MaxAttempts  int           `mapstructure:"max_attempts"`
			WriteTimeout time.Duration `mapstructure:"write_timeout"`
		} `mapstructure:"websocket"`
	} `mapstructure:"output"`

	Logging logger.Config `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.sample_rate", core.DefaultSampleRate)
	v.SetDefault("audio.bit_rate", core.DefaultBitRate)
	v.SetDefault("audio.channels", core.DefaultChannels)
	v.SetDefault("audio.period_frames", 0)
	v.SetDefault("audio.peak_interval", "250ms")
	v.SetDefault("audio.backend", "malgo")
	v.SetDefault("output.target", "recording.ogg")
	v.SetDefault("output.format", "ogg")
	v.SetDefault("output.duration", "10s")
	v.SetDefault("output.websocket.max_attempts", 3)
	v.SetDefault("output.websocket.write_timeout", "2s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputs", []string{"stdout"})
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// flagKeys 命令行参数与配置键的对应关系
var flagKeys = map[string]string{
	"sample-rate": "audio.sample_rate",
	"bit-rate":    "audio.bit_rate",
	"channels":    "audio.channels",
	"backend":     "audio.backend",
	"output":      "output.target",
	"format":      "output.format",
	"duration":    "output.duration",
	"log-level":   "logging.level",
}

// loadConfig 加载配置文件，configPath 为空时按默认路径搜索，找不到文件时使用默认值
func loadConfig(configPath string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("VOICECAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		// 使用命令行指定的路径
		v.SetConfigFile(configPath)
	} else {
		// 默认多路径搜索
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/voicecap")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Audio.Backend {
	case "malgo", "portaudio":
	default:
		return fmt.Errorf("unsupported audio backend: %q", c.Audio.Backend)
	}
	switch c.Output.Format {
	case "ogg", "raw":
	default:
		return fmt.Errorf("unsupported output format: %q", c.Output.Format)
	}
	if c.Output.Target == "" {
		return errors.New("output target is required")
	}
	return nil
}
