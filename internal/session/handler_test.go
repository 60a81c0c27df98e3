package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/daniele122008/hal-fuzz-extra/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWatcher struct {
	mu   sync.Mutex
	dirs []string
}

func (f *fakeWatcher) AddDir(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs = append(f.dirs, dir)
	return nil
}

func (f *fakeWatcher) watched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dirs...)
}

func TestWatchCrashDirsDiscoversInstanceDirs(t *testing.T) {
	old := crashScanInterval
	crashScanInterval = 50 * time.Millisecond
	defer func() { crashScanInterval = old }()

	outputDir := t.TempDir()
	for _, name := range []string{"master", "slave2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(outputDir, name, "crashes"), 0755))
	}

	env := newTestEnv(t, 1) // instanceCount = 2
	sess := &types.Session{ID: "s", OutputDir: outputDir}
	fake := &fakeWatcher{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		env.launcher.watchCrashDirs(ctx, fake, sess, zap.NewNop())
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop after watching every instance dir")
	}

	watched := fake.watched()
	require.Len(t, watched, 2)
	assert.ElementsMatch(t, []string{
		filepath.Join(outputDir, "master", "crashes"),
		filepath.Join(outputDir, "slave2", "crashes"),
	}, watched)
}

func TestFilterCrashFiles(t *testing.T) {
	assert.False(t, filterCrashFiles("/out/master/crashes/README.txt"))
	assert.True(t, filterCrashFiles("/out/master/crashes/id:000000,sig:11"))
}

func TestInstanceOf(t *testing.T) {
	assert.Equal(t, "slave2", instanceOf("/out/slave2/crashes/id:000001,sig:06"))
	assert.Equal(t, "master", instanceOf("/out/master/crashes/id:000000,sig:11"))
}

func TestCrashProxyForwardsAndCloses(t *testing.T) {
	sess := &types.Session{ID: "s", TargetName: "st-plc"}
	fileChan := make(chan string, 2)
	crashChan := make(chan types.CrashMessage, 2)

	fileChan <- "/out/slave2/crashes/id:000000,sig:11"
	close(fileChan)

	crashProxy(sess, fileChan, crashChan)

	msg, ok := <-crashChan
	require.True(t, ok)
	assert.Equal(t, "slave2", msg.Instance)
	assert.Equal(t, sess, msg.Session)

	_, ok = <-crashChan
	assert.False(t, ok, "proxy must close its channel when the source closes")
}
