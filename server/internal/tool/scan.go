package tool

import (
	"bufio"
	"bytes"
	"io"
)

// SplitProgressLines is a bufio.SplitFunc that segments on both carriage
// returns and newlines. yt-dlp rewrites its progress line with \r while
// ffmpeg terminates stats lines the same way, so plain ScanLines would sit
// on a partial line until the process exits.
func SplitProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func scanOutput(r io.Reader, sink func([]byte)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(SplitProgressLines)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		sink(line)
	}
}
