package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeTestConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestWatcherNotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "udp_port = 9\n")

	notified := make(chan struct{}, 1)
	w := New(path, 10*time.Millisecond, zerolog.Nop())
	w.onChange = func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := os.WriteFile(path, []byte("udp_port = 4009\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification after config write")
	}

	cancel()
	w.Wait()
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "udp_port = 9\n")

	notified := make(chan struct{}, 1)
	w := New(path, 10*time.Millisecond, zerolog.Nop())
	w.onChange = func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("unrelated"), 0644); err != nil {
		t.Fatalf("write other file: %v", err)
	}

	select {
	case <-notified:
		t.Fatal("notified for a change to an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStartFailsOnMissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope", "config.toml"), 0, zerolog.Nop())
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded for a nonexistent directory")
	}
}
