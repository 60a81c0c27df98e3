package session

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startSleeper(t *testing.T, s *procSet, name string) *trackedProc {
	t.Helper()
	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())

	tracked := s.Track(name, cmd)
	go func() {
		cmd.Wait()
		tracked.MarkExited()
	}()
	return tracked
}

func TestReleaseAllTerminatesTracked(t *testing.T) {
	s := newProcSet(2*time.Second, zap.NewNop())
	p1 := startSleeper(t, s, "slave2")
	p2 := startSleeper(t, s, "slave3")

	start := time.Now()
	s.ReleaseAll()
	assert.Less(t, time.Since(start), 10*time.Second)

	for _, p := range []*trackedProc{p1, p2} {
		select {
		case <-p.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("process %s still alive after ReleaseAll", p.name)
		}
	}
}

func TestReleaseAllEmptySet(t *testing.T) {
	s := newProcSet(time.Second, zap.NewNop())
	s.ReleaseAll() // must not panic or block
}

func TestReleaseAllIdempotent(t *testing.T) {
	s := newProcSet(2*time.Second, zap.NewNop())
	startSleeper(t, s, "slave2")

	s.ReleaseAll()
	start := time.Now()
	s.ReleaseAll() // everything already exited, must return immediately
	assert.Less(t, time.Since(start), time.Second)
}

func TestReleaseSkipsExitedProcess(t *testing.T) {
	s := newProcSet(time.Second, zap.NewNop())

	cmd := exec.Command("true")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	tracked := s.Track("short", cmd)
	require.NoError(t, cmd.Wait())
	tracked.MarkExited()

	start := time.Now()
	s.ReleaseAll()
	assert.Less(t, time.Since(start), time.Second)
}
