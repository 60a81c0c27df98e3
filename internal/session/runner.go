package session

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SessionRunner binds one RunSession call to the application
// lifecycle: the session starts with the app and an app shutdown
// (completion, error or operator interrupt) cancels the session, which
// releases every spawned fuzzing process before the app exits.
type SessionRunner struct {
	launcher *SessionLauncher
	logger   *zap.Logger

	done chan struct{}
}

type SessionRunnerParams struct {
	fx.In

	Lc         fx.Lifecycle
	Launcher   *SessionLauncher
	Logger     *zap.Logger
	Shutdowner fx.Shutdowner
}

func NewSessionRunner(params SessionRunnerParams) *SessionRunner {
	runner := &SessionRunner{
		launcher: params.Launcher,
		logger:   params.Logger,
		done:     make(chan struct{}),
	}

	runCtx, cancel := context.WithCancel(context.Background())

	params.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(runner.done)
				if err := runner.launcher.RunSession(runCtx); err != nil {
					runner.logger.Error("fuzzing session failed", zap.Error(err))
				}
				params.Shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			<-runner.done
			return nil
		},
	})
	return runner
}
