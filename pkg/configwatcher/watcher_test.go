package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai_mentor_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, uploads string, tierA float64) {
	t.Helper()
	body := fmt.Sprintf("storage:\n  local_path: %s\nmastery:\n  tier_a_threshold: %.0f\n  tier_b_threshold: 50\n", uploads, tierA)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWatchReloadsOnWrite(t *testing.T) {
	Debounce = 50 * time.Millisecond
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	uploads := filepath.Join(dir, "uploads")
	writeConfig(t, path, uploads, 80)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 4)
	require.NoError(t, Watch(ctx, path, func(cfg *config.Config) { reloaded <- cfg }))

	writeConfig(t, path, uploads, 90)

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 90.0, cfg.Mastery.TierAThreshold)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestWatchKeepsOldConfigOnInvalidFile(t *testing.T) {
	Debounce = 50 * time.Millisecond
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	uploads := filepath.Join(dir, "uploads")
	writeConfig(t, path, uploads, 80)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 4)
	require.NoError(t, Watch(ctx, path, func(cfg *config.Config) { reloaded <- cfg }))

	// B 档阈值高于 A 档，校验失败
	writeConfig(t, path, uploads, 40)

	select {
	case <-reloaded:
		t.Fatal("invalid config must not be applied")
	case <-time.After(500 * time.Millisecond):
	}
}
