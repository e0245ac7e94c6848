package mirror

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodPayload = `{
	"title": "Test Video",
	"duration": 212,
	"uploader": "Channel",
	"thumbnailUrl": "https://img.example/1.jpg",
	"audioStreams": [
		{"url": "https://cdn.example/a", "bitrate": 128000, "mimeType": "audio/mp4", "format": "M4A"}
	],
	"videoStreams": [
		{"url": "https://cdn.example/v", "height": 720, "fps": 30, "mimeType": "video/mp4"}
	]
}`

func TestResolveSkipsErrorPayloads(t *testing.T) {
	var badHits, goodHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/bad/streams/", func(w http.ResponseWriter, r *http.Request) {
		badHits.Add(1)
		w.Write([]byte(`{"error": "Video unavailable"}`))
	})
	mux.HandleFunc("/good/streams/", func(w http.ResponseWriter, r *http.Request) {
		goodHits.Add(1)
		w.Write([]byte(goodPayload))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewResolver([]string{srv.URL + "/bad", srv.URL + "/good"})

	meta, err := r.ResolveMetadata(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "Test Video", meta.Title)
	assert.Equal(t, 212, meta.Duration)
	assert.Equal(t, "Channel", meta.Uploader)
	assert.Equal(t, int32(1), badHits.Load())
	assert.Equal(t, int32(1), goodHits.Load())
}

func TestResolveSkipsUnreachableMirrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(goodPayload))
	}))
	defer srv.Close()

	r := NewResolver([]string{"http://127.0.0.1:1/down", srv.URL})

	streams, err := r.ResolveStreams(context.Background(), "abc123")
	require.NoError(t, err)

	require.Len(t, streams.Audio, 1)
	require.Len(t, streams.Video, 1)
	assert.Equal(t, 128000, streams.Audio[0].Bitrate)
	assert.Equal(t, 720, streams.Video[0].Height)
}

func TestResolveExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "nope"}`))
	}))
	defer srv.Close()

	r := NewResolver([]string{srv.URL})

	_, err := r.ResolveMetadata(context.Background(), "abc123")
	require.ErrorIs(t, err, ErrExhausted)
}

func TestResolveRejectsTitlelessPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"duration": 100}`))
	}))
	defer srv.Close()

	r := NewResolver([]string{srv.URL})

	_, err := r.ResolveMetadata(context.Background(), "abc123")
	require.ErrorIs(t, err, ErrExhausted)
}
