package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/clipforge/clipforge/server"
	"github.com/clipforge/clipforge/server/config"

	"github.com/spf13/viper"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.Parse()

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 2000)
	v.SetDefault("server.queue_size", 2)
	v.SetDefault("paths.downloader_path", "yt-dlp")
	v.SetDefault("paths.ffmpeg_path", "ffmpeg")
	v.SetDefault("paths.work_dir", os.TempDir())
	v.SetDefault("mirrors", []string{
		"https://pipedapi.kavin.rocks",
		"https://pipedapi.tokhmi.xyz",
		"https://api.piped.projectsegfau.lt",
	})
	v.SetDefault("timeouts.metadata", "30s")
	v.SetDefault("timeouts.download", "10m")
	v.SetDefault("timeouts.transcode", "10m")
	v.SetDefault("sweep.interval", "5m")
	v.SetDefault("sweep.staleness", "30m")
	v.SetDefault("updater.update_on_boot", false)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// config file is optional, defaults and env cover a bare start
	if err := v.ReadInConfig(); err != nil {
		slog.Debug("no config file, using defaults", "path", configFile)
	}

	cfg := config.Instance()
	if err := v.Unmarshal(cfg); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Server.QueueSize <= 0 {
		cfg.Server.QueueSize = 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"queue_size", cfg.Server.QueueSize,
	)

	if err := server.Run(ctx); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}
