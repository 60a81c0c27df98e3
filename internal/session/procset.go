package session

import (
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// procSet is the scoped resource set of processes a session has
// spawned. Releasing the set terminates exactly those processes,
// never unrelated same-named ones elsewhere on the host.
type procSet struct {
	mu    sync.Mutex
	procs []*trackedProc

	grace  time.Duration
	logger *zap.Logger
}

type trackedProc struct {
	name string
	cmd  *exec.Cmd
	done chan struct{}
}

func newProcSet(grace time.Duration, logger *zap.Logger) *procSet {
	return &procSet{
		grace:  grace,
		logger: logger,
	}
}

// Track registers a started command. The caller must call MarkExited
// on the returned handle once it has reaped the process (cmd.Wait).
func (s *procSet) Track(name string, cmd *exec.Cmd) *trackedProc {
	t := &trackedProc{
		name: name,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.procs = append(s.procs, t)
	s.mu.Unlock()
	return t
}

func (t *trackedProc) MarkExited() {
	close(t.done)
}

func (t *trackedProc) exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// ReleaseAll terminates every live tracked process: SIGTERM to its
// process group, then SIGKILL after the grace window. Idempotent, and
// a no-op for processes that have already exited.
func (s *procSet) ReleaseAll() {
	s.mu.Lock()
	procs := make([]*trackedProc, len(s.procs))
	copy(procs, s.procs)
	s.mu.Unlock()

	for _, p := range procs {
		s.release(p)
	}
}

func (s *procSet) release(p *trackedProc) {
	if p.exited() || p.cmd.Process == nil {
		return
	}
	pid := p.cmd.Process.Pid

	s.logger.Debug("terminating fuzzing process",
		zap.String("instance", p.name), zap.Int("pid", pid))
	if err := signalGroup(pid, unix.SIGTERM); err != nil {
		// already gone, the reaper will observe the exit
		return
	}

	select {
	case <-p.done:
		return
	case <-time.After(s.grace):
	}

	s.logger.Warn("fuzzing process ignored SIGTERM, killing",
		zap.String("instance", p.name), zap.Int("pid", pid))
	_ = signalGroup(pid, unix.SIGKILL)

	// give the reaper a moment; a kill cannot be refused
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		s.logger.Error("fuzzing process not reaped after SIGKILL",
			zap.String("instance", p.name), zap.Int("pid", pid))
	}
}
