// a stupid package name...
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/clipforge/clipforge/server/config"
	"github.com/clipforge/clipforge/server/internal/mirror"
	"github.com/clipforge/clipforge/server/internal/pipeline"
	"github.com/clipforge/clipforge/server/internal/registry"
	"github.com/clipforge/clipforge/server/internal/retry"
	"github.com/clipforge/clipforge/server/internal/strategy"
	"github.com/clipforge/clipforge/server/internal/tool"
	"github.com/clipforge/clipforge/server/rest"
	"github.com/clipforge/clipforge/server/updater"
)

func Run(ctx context.Context) error {
	conf := config.Instance()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if conf.Updater.UpdateOnBoot {
		go updater.UpdateExecutable()
	}

	var (
		runner  = tool.NewExecRunner()
		retrier = retry.New(runner, strategy.Table())
		mirrors = mirror.NewResolver(conf.Mirrors)
		reg     = registry.New()
	)

	go reg.StartSweeper(ctx, conf.Sweep.Interval, conf.Sweep.Staleness)

	pl := pipeline.New(runner, retrier, mirrors, reg, pipeline.Options{
		DownloaderPath:   conf.Paths.DownloaderPath,
		FFmpegPath:       conf.Paths.FFmpegPath,
		WorkRoot:         conf.Paths.WorkDir,
		MetadataTimeout:  conf.Timeout.Metadata,
		DownloadTimeout:  conf.Timeout.Download,
		TranscodeTimeout: conf.Timeout.Transcode,
		Concurrency:      int64(conf.Server.QueueSize),
	})

	srv := &http.Server{Handler: newRouter(pl)}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		srv.Shutdown(context.Background())
	}()

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(conf.Server.Host, "/") {
		network = "unix"
		address = conf.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		return err
	}

	slog.Info("clipforge started", slog.String("address", address))

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		slog.Warn("http server stopped", slog.String("err", err.Error()))
		return err
	}

	return nil
}

func newRouter(pl *pipeline.Pipeline) http.Handler {
	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)

	r.Route("/api", rest.ApplyRouter(&rest.ContainerArgs{
		Pipeline: pl,
	}))

	return r
}
