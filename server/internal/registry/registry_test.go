package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGetMutateRemove(t *testing.T) {
	r := New()

	r.Create(Task{ID: "t1", Status: StatusStarting, Phase: "Starting download..."})

	got, ok := r.Get("t1")
	require.True(t, ok)
	assert.Equal(t, StatusStarting, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	ok = r.Mutate("t1", func(t *Task) {
		t.Status = StatusDownloading
		t.Progress = 42
	})
	require.True(t, ok)

	got, _ = r.Get("t1")
	assert.Equal(t, StatusDownloading, got.Status)
	assert.Equal(t, 42.0, got.Progress)

	removed, ok := r.Remove("t1")
	require.True(t, ok)
	assert.Equal(t, StatusDownloading, removed.Status)

	_, ok = r.Get("t1")
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	r := New()
	r.Create(Task{ID: "t1", Progress: 10})

	snap, _ := r.Get("t1")
	snap.Progress = 99

	again, _ := r.Get("t1")
	assert.Equal(t, 10.0, again.Progress, "mutating a snapshot must not leak into the store")
}

func TestMutateRemovedTaskIsNoOp(t *testing.T) {
	r := New()
	r.Create(Task{ID: "t1"})
	r.Remove("t1")

	ok := r.Mutate("t1", func(t *Task) {
		t.Status = StatusDone
	})
	assert.False(t, ok, "a worker outliving its abandoned task must not crash")
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New()
	r.Create(Task{ID: "t1"})

	_, ok := r.Remove("t1")
	assert.True(t, ok)

	_, ok = r.Remove("t1")
	assert.False(t, ok)
}

func TestSweepRemovesStaleTasks(t *testing.T) {
	r := New()

	dir := t.TempDir()
	stale := filepath.Join(dir, "stale-task")
	require.NoError(t, os.Mkdir(stale, 0o755))

	r.Create(Task{ID: "old", WorkDir: stale})

	// shift the clock past the staleness window for the next operations
	r.now = func() time.Time { return time.Now().Add(time.Hour) }
	r.Create(Task{ID: "fresh"})

	n := r.Sweep(30 * time.Minute)
	assert.Equal(t, 1, n)

	_, ok := r.Get("old")
	assert.False(t, ok)
	_, ok = r.Get("fresh")
	assert.True(t, ok)

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "sweep must delete the work dir")
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.False(t, StatusStarting.Terminal())
	assert.False(t, StatusDownloading.Terminal())
	assert.False(t, StatusProcessing.Terminal())
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	r.Create(Task{ID: "t1", Status: StatusDownloading})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Mutate("t1", func(t *Task) { t.Progress++ })
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Get("t1")
				r.Len()
			}
		}()
	}
	wg.Wait()

	got, _ := r.Get("t1")
	assert.Equal(t, 800.0, got.Progress)
}
