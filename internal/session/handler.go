package session

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/daniele122008/hal-fuzz-extra/internal/types"
	"go.uber.org/zap"
)

// startCrashWatch wires the session's crash directories into the crash
// manager: a watchdog forwards newly created crash files, the proxy
// tags them with their instance and session, and a monitor discovers
// each instance's crashes/ directory as afl creates it.
func (l *SessionLauncher) startCrashWatch(ctx context.Context, sess *types.Session, logger *zap.Logger) {
	fileNotifyChan := make(chan string, 1024)
	dog, err := l.watchDogFac.New(ctx, fileNotifyChan, filterCrashFiles)
	if err != nil {
		logger.Warn("crash watching disabled", zap.Error(err))
		close(fileNotifyChan)
		return
	}

	crashChan := make(chan types.CrashMessage, 1024)
	l.crashManager.RegisterCrashChan(crashChan)

	go crashProxy(sess, fileNotifyChan, crashChan)
	go l.watchCrashDirs(ctx, dog, sess, logger)
}

// filterCrashFiles filters out files that are not crashes but are in the crash folder
func filterCrashFiles(crashFileName string) bool {
	return path.Base(crashFileName) != "README.txt"
}

// crashProxy forwards crash file notifications as CrashMessages. It
// exits when the watchdog closes the notification channel.
func crashProxy(sess *types.Session, fileNotifyChan <-chan string, crashChan chan<- types.CrashMessage) {
	defer close(crashChan)
	for crashFile := range fileNotifyChan {
		crashChan <- types.CrashMessage{
			CrashFile: crashFile,
			Instance:  instanceOf(crashFile),
			Session:   sess,
		}
	}
}

// instanceOf recovers the afl sync id from a crash path,
// <output>/<instance>/crashes/<file>.
func instanceOf(crashFile string) string {
	return filepath.Base(filepath.Dir(filepath.Dir(crashFile)))
}

// watchCrashDirs periodically scans for per-instance crashes/
// directories and adds new ones to the watchdog. afl creates them some
// time after startup, so they cannot be watched up front. The scan
// stops once every instance's directory is watched or ctx is done.
func (l *SessionLauncher) watchCrashDirs(ctx context.Context, dog crashWatcher, sess *types.Session, logger *zap.Logger) {
	crashGlob := path.Join(sess.OutputDir, "*", "crashes")
	instanceCount := l.appConfig.WorkerCount + 1
	watched := make(map[string]struct{})

	ticker := time.NewTicker(crashScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			matches, err := filepath.Glob(crashGlob)
			if err != nil {
				logger.Error("failed to glob crash folders", zap.Error(err))
				continue
			}
			for _, crashDir := range matches {
				if _, ok := watched[crashDir]; ok {
					continue
				}
				if _, err := os.Stat(crashDir); err != nil {
					continue
				}
				if err := dog.AddDir(crashDir); err != nil {
					logger.Debug("failed to watch crash folder",
						zap.String("crash_dir", crashDir), zap.Error(err))
					continue
				}
				logger.Debug("watching crash folder", zap.String("crash_dir", crashDir))
				watched[crashDir] = struct{}{}
			}
			if len(watched) == instanceCount {
				logger.Debug("all crash directories watched")
				return
			}
		}
	}
}

// crashWatcher is what watchCrashDirs needs from the watchdog.
type crashWatcher interface {
	AddDir(dir string) error
}

// afl creates per-instance crashes/ dirs shortly after startup
var crashScanInterval = 5 * time.Second
