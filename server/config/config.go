package config

import (
	"sync"
	"time"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Mirrors []string      `mapstructure:"mirrors"`
	Timeout TimeoutConfig `mapstructure:"timeouts"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
	Updater UpdaterConfig `mapstructure:"updater"`
}

type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	QueueSize int    `mapstructure:"queue_size"`
}

type PathsConfig struct {
	DownloaderPath string `mapstructure:"downloader_path"`
	FFmpegPath     string `mapstructure:"ffmpeg_path"`
	WorkDir        string `mapstructure:"work_dir"`
}

type TimeoutConfig struct {
	Metadata  time.Duration `mapstructure:"metadata"`
	Download  time.Duration `mapstructure:"download"`
	Transcode time.Duration `mapstructure:"transcode"`
}

type SweepConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Staleness time.Duration `mapstructure:"staleness"`
}

type UpdaterConfig struct {
	UpdateOnBoot bool `mapstructure:"update_on_boot"`
}

var (
	instance     *Config
	instanceOnce sync.Once
)

func Instance() *Config {
	instanceOnce.Do(func() {
		instance = &Config{}
	})
	return instance
}
