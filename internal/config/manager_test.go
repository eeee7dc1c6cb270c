package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerLoadsInitialConfig(t *testing.T) {
	path := writeConfigFile(t, `{"sync":{"batch_size":42}}`)
	m, err := NewManager(path, quietLogger())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 42, m.Get().Sync.BatchSize)
}

func TestManagerStatusReportsChecksumAndLoadTime(t *testing.T) {
	path := writeConfigFile(t, `{}`)
	m, err := NewManager(path, quietLogger())
	require.NoError(t, err)
	defer m.Close()

	status := m.Status()
	assert.Equal(t, path, status.Path)
	assert.NotEmpty(t, status.Checksum)
	assert.False(t, status.LoadedAt.IsZero())
	assert.EqualValues(t, 1, status.ReloadCount)
}

func TestManagerReloadSwapsConfigAtomically(t *testing.T) {
	path := writeConfigFile(t, `{"sync":{"batch_size":42}}`)
	m, err := NewManager(path, quietLogger())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"sync":{"batch_size":99}}`), 0o644))
	require.NoError(t, m.Reload())

	assert.Equal(t, 99, m.Get().Sync.BatchSize)
	assert.EqualValues(t, 2, m.Status().ReloadCount)
}

func TestManagerOnChangeNotifiesListeners(t *testing.T) {
	path := writeConfigFile(t, `{"sync":{"batch_size":1}}`)
	m, err := NewManager(path, quietLogger())
	require.NoError(t, err)
	defer m.Close()

	var seen int
	m.OnChange(func(cfg *Config) {
		seen = cfg.Sync.BatchSize
	})

	require.NoError(t, os.WriteFile(path, []byte(`{"sync":{"batch_size":7}}`), 0o644))
	require.NoError(t, m.Reload())

	assert.Equal(t, 7, seen)
}

func TestManagerWatchDebouncesAndReloadsOnWrite(t *testing.T) {
	path := writeConfigFile(t, `{"sync":{"batch_size":1}}`)
	m, err := NewManager(path, quietLogger())
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte(`{"sync":{"batch_size":55}}`), 0o644))

	require.Eventually(t, func() bool {
		return m.Get().Sync.BatchSize == 55
	}, 3*time.Second, 50*time.Millisecond)
}
