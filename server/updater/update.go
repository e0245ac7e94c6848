package updater

import (
	"log/slog"
	"os/exec"

	"github.com/clipforge/clipforge/server/config"
)

// UpdateExecutable upgrades the extractor in place using its builtin
// self-update. Remote services break extraction regularly, so running a
// stale binary is the most common cause of avoidable bot-detection
// failures.
func UpdateExecutable() error {
	bin := config.Instance().Paths.DownloaderPath
	if bin == "" {
		bin = "yt-dlp"
	}

	cmd := exec.Command(bin, "-U")

	out, err := cmd.CombinedOutput()
	if err != nil {
		slog.Warn("extractor self-update failed",
			slog.String("output", string(out)),
			slog.Any("err", err),
		)
		return err
	}

	slog.Info("extractor self-update finished", slog.String("output", string(out)))
	return nil
}
