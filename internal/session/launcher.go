package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/daniele122008/hal-fuzz-extra/config"
	"github.com/daniele122008/hal-fuzz-extra/internal/crash"
	"github.com/daniele122008/hal-fuzz-extra/internal/target"
	"github.com/daniele122008/hal-fuzz-extra/internal/types"
	"github.com/daniele122008/hal-fuzz-extra/pkg/watchdog"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// directory under the output dir holding the per-slave output sinks
const sinkDirName = "launcher_logs"

// SessionLauncher owns the lifecycle of one fuzzing session: a single
// foreground master afl-fuzz instance plus WorkerCount background
// slaves, all synchronizing through the shared output directory. It
// guarantees that none of the processes it spawned outlive the session.
type SessionLauncher struct {
	logger       *zap.Logger
	appConfig    *config.AppConfig
	watchDogFac  *watchdog.WatchDogFactory
	crashManager *crash.CrashManager
}

type SessionLauncherParams struct {
	fx.In

	Logger       *zap.Logger
	AppConfig    *config.AppConfig
	WatchDogFac  *watchdog.WatchDogFactory
	CrashManager *crash.CrashManager
}

func NewSessionLauncher(params SessionLauncherParams) *SessionLauncher {
	return &SessionLauncher{
		params.Logger,
		params.AppConfig,
		params.WatchDogFac,
		params.CrashManager,
	}
}

// RunSession blocks until the foreground master exits or ctx is
// cancelled. On every exit path the session's spawned processes are
// released before returning.
func (l *SessionLauncher) RunSession(ctx context.Context) error {
	tgt, err := target.Load(l.appConfig.TargetConfig)
	if err != nil {
		return fmt.Errorf("target config unusable: %w", err)
	}

	sess := &types.Session{
		ID:           uuid.New().String(),
		TargetConfig: l.appConfig.TargetConfig,
		TargetName:   tgt.Identity(),
		OutputDir:    l.appConfig.OutputDir,
	}

	logger := l.logger.With(
		zap.String("session_id", sess.ID),
		zap.String("target", sess.TargetName),
	)
	logger.Info("starting fuzzing session",
		zap.Int("worker_count", l.appConfig.WorkerCount),
		zap.String("output_dir", sess.OutputDir),
		zap.Int("memory_regions", tgt.RegionCount()),
	)

	if err := os.MkdirAll(sess.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	sinkDir := filepath.Join(sess.OutputDir, sinkDirName)
	if err := os.MkdirAll(sinkDir, 0755); err != nil {
		return fmt.Errorf("failed to create log sink dir: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	procs := newProcSet(l.appConfig.ShutdownGrace, logger)
	defer procs.ReleaseAll()

	// cancellation while blocked on the master below also releases the
	// set; afl-fuzz traps the termination signal and syncs before exit
	go func() {
		<-sessionCtx.Done()
		procs.ReleaseAll()
	}()

	l.startCrashWatch(sessionCtx, sess, logger)

	harness := l.harnessCommand()
	reapers := sync.WaitGroup{}

	// spawn slaves slave2..slave(N+1) in increasing order, before the
	// master, fire-and-forget: a failed spawn is logged and skipped
	for idx := 2; idx <= l.appConfig.WorkerCount+1; idx++ {
		name := fmt.Sprintf("slave%d", idx)
		inst := &AFLInstance{
			Name:        name,
			Mode:        AFLSlave,
			InputCorpus: l.appConfig.InputCorpus,
			OutputDir:   sess.OutputDir,
			TimeoutMs:   l.appConfig.SlaveTimeoutMs,
			Binary:      l.appConfig.AFLBinary,
			Harness:     harness,
			Env:         slaveAFLEnv(),
		}

		// slave output goes to a per-instance sink file, not to the
		// operator's console
		sink, err := os.Create(filepath.Join(sinkDir, name+".log"))
		if err != nil {
			logger.Warn("failed to create slave log sink, output will be discarded",
				zap.String("instance", name), zap.Error(err))
		} else {
			inst.Stdout = sink
			inst.Stderr = sink
		}

		cmd := inst.Command()
		if err := cmd.Start(); err != nil {
			logger.Warn("failed to spawn slave",
				zap.String("instance", name), zap.Error(err))
			if sink != nil {
				sink.Close()
			}
			continue
		}
		logger.Debug("spawned slave",
			zap.String("instance", name), zap.Int("pid", cmd.Process.Pid))

		tracked := procs.Track(name, cmd)
		reapers.Add(1)
		go func(name string, cmd *exec.Cmd, sink *os.File, tracked *trackedProc) {
			defer reapers.Done()
			err := cmd.Wait()
			tracked.MarkExited()
			if sink != nil {
				sink.Close()
			}
			logger.Debug("slave exited", zap.String("instance", name), zap.Error(err))
		}(name, cmd, sink, tracked)
	}

	// the master runs in the foreground with the launcher's own
	// streams so its status screen is visible to the operator
	master := &AFLInstance{
		Name:        "master",
		Mode:        AFLMaster,
		InputCorpus: l.appConfig.InputCorpus,
		OutputDir:   sess.OutputDir,
		TimeoutMs:   l.appConfig.MasterTimeoutMs,
		SoftTimeout: true,
		Binary:      l.appConfig.AFLBinary,
		Harness:     harness,
		Env:         defaultAFLEnv(),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}

	cmd := master.Command()
	logger.Info("running afl-fuzz master", zap.String("command", cmd.String()))
	if err := cmd.Start(); err != nil {
		cancel()
		procs.ReleaseAll()
		reapers.Wait()
		return fmt.Errorf("failed to start master: %w", err)
	}
	tracked := procs.Track("master", cmd)
	if sessionCtx.Err() != nil {
		// cancelled between Start and Track, the release above may have
		// missed the master
		procs.ReleaseAll()
	}
	waitErr := cmd.Wait()
	tracked.MarkExited()

	// the master exit status is not inspected further: whatever the
	// reason, the session is over and cleanup runs
	logger.Info("master exited", zap.Error(waitErr))

	cancel()
	procs.ReleaseAll()
	reapers.Wait()
	logger.Info("fuzzing session finished")
	return nil
}

// harnessCommand is the trailing target command handed to afl-fuzz:
// the python harness boots the emulated machine from the target config
// and feeds it the generated test case.
func (l *SessionLauncher) harnessCommand() []string {
	return []string{
		l.appConfig.PythonBinary,
		"-m", l.appConfig.HarnessModule,
		"-c", l.appConfig.TargetConfig,
		TestCasePlaceholder,
	}
}
