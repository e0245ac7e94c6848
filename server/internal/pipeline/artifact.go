package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// partialSuffixes mark in-flight extractor files that must never be
// mistaken for the finished artifact.
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

// locateArtifact finds the produced file: the exact expected path is
// preferred, otherwise the working directory is scanned for the expected
// prefix, since the transcode step may negotiate a different extension.
// A zero-size file does not count.
func locateArtifact(dir, prefix, expected string) (string, int64, error) {
	if fi, err := os.Stat(expected); err == nil && !fi.IsDir() && fi.Size() > 0 {
		return expected, fi.Size(), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if isPartial(e.Name()) {
			continue
		}

		fi, err := e.Info()
		if err != nil || fi.Size() == 0 {
			continue
		}

		return filepath.Join(dir, e.Name()), fi.Size(), nil
	}

	return "", 0, errors.New("output artifact missing or empty")
}

func isPartial(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
