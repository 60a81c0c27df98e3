package watchdog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchDogNotifiesOnCreate(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifyChan := make(chan string, 16)
	dog, err := NewWatchDogFactory(zap.NewNop()).New(ctx, notifyChan, nil)
	require.NoError(t, err)
	require.NoError(t, dog.AddDir(dir))

	created := filepath.Join(dir, "id:000000,sig:11")
	require.NoError(t, os.WriteFile(created, []byte("x"), 0644))

	select {
	case got := <-notifyChan:
		assert.Equal(t, created, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification for created file")
	}
}

func TestWatchDogFilter(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifyChan := make(chan string, 16)
	filter := func(name string) bool {
		return filepath.Base(name) != "README.txt"
	}
	dog, err := NewWatchDogFactory(zap.NewNop()).New(ctx, notifyChan, filter)
	require.NoError(t, err)
	require.NoError(t, dog.AddDir(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0644))
	kept := filepath.Join(dir, "crash")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0644))

	select {
	case got := <-notifyChan:
		assert.Equal(t, kept, got, "filtered file must not be forwarded")
	case <-time.After(5 * time.Second):
		t.Fatal("no notification for kept file")
	}
}

func TestWatchDogClosesChannelOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	notifyChan := make(chan string, 1)
	_, err := NewWatchDogFactory(zap.NewNop()).New(ctx, notifyChan, nil)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-notifyChan:
		assert.False(t, ok, "channel must be closed once the context is done")
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancellation")
	}
}

func TestAddDirMissing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifyChan := make(chan string, 1)
	dog, err := NewWatchDogFactory(zap.NewNop()).New(ctx, notifyChan, nil)
	require.NoError(t, err)

	assert.Error(t, dog.AddDir(filepath.Join(t.TempDir(), "missing")))
}
