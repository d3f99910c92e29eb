package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "logging:\n  level: info\n")

	var (
		mu     sync.Mutex
		levels []string
	)
	w := NewWatcher(path, nil, func(cfg *Config) {
		mu.Lock()
		levels = append(levels, cfg.Logging.Level)
		mu.Unlock()
	}, zerolog.Nop())
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600)
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == "debug"
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_KeepsPreviousOnBadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "server: [\n")

	called := false
	w := NewWatcher(path, nil, func(*Config) { called = true }, zerolog.Nop())
	w.reload()
	assert.False(t, called)
}

func TestActivePath(t *testing.T) {
	home := isolate(t)
	assert.Empty(t, ActivePath())

	user := filepath.Join(home, DirName, "config.yaml")
	writeFile(t, user, "logging:\n  level: warn\n")
	assert.Equal(t, user, ActivePath())

	writeFile(t, filepath.Join(".", DirName, "config.yaml"), "logging:\n  level: warn\n")
	assert.Equal(t, filepath.Join(".", DirName, "config.yaml"), ActivePath())
}
