package session

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// --- AFLInstance ---
type AFLInstance struct {
	Name        string          // afl sync id of the instance
	Mode        AFLInstanceMode // master or slave
	InputCorpus string          // -i <dir>, or "-" to resume from the output queue
	OutputDir   string          // -o <outputDir>, shared by the whole session
	TimeoutMs   int             // per-execution timeout in ms
	SoftTimeout bool            // allow afl to extend the timeout once (-t <ms>+)
	Binary      string          // path to the afl-fuzz executable
	Harness     []string        // trailing harness command, "@@" is the test case placeholder
	Env         []string        // extra environment for the afl-fuzz process
	Stdout      io.Writer
	Stderr      io.Writer
}

type AFLInstanceMode int

const (
	AFLMaster AFLInstanceMode = iota // -M, the one coordinating instance
	AFLSlave                         // -S, parallel worker instance
)

// TestCasePlaceholder is substituted by afl-fuzz with the generated
// test case path in the trailing harness command.
const TestCasePlaceholder = "@@"

// Command builds the ready-to-start afl-fuzz command. The process is
// placed in its own process group so the whole tree (afl-fuzz plus the
// python harness it forks) can be released together.
func (m *AFLInstance) Command() *exec.Cmd {
	cmd := exec.Command(m.Binary, m.buildArgs()...)
	cmd.Env = append(os.Environ(), m.Env...)
	cmd.Stdout = m.Stdout
	cmd.Stderr = m.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// buildArgs builds the command line arguments for the afl-fuzz instance based on its configuration.
func (m *AFLInstance) buildArgs() []string {
	// Input & Output
	args := []string{"-i", m.InputCorpus, "-o", m.OutputDir}

	// Mode & Name
	switch m.Mode {
	case AFLMaster:
		args = append(args, "-M", m.Name)
	case AFLSlave:
		args = append(args, "-S", m.Name)
	}

	// Timeout. Firmware emulation is slow, so the master gets a soft
	// timeout afl may extend once; slaves keep the hard limit.
	timeout := m.TimeoutMs
	if timeout <= 0 {
		timeout = 2000
	}
	if m.SoftTimeout {
		args = append(args, "-t", fmt.Sprintf("%d+", timeout))
	} else {
		args = append(args, "-t", fmt.Sprintf("%d", timeout))
	}

	// No memory cap: default ceilings are sized for native binaries,
	// not for an emulator hosting the firmware image.
	args = append(args, "-m", "none")

	// Unicorn mode, the harness runs the target under emulation
	args = append(args, "-U")

	// Harness
	args = append(args, "--")
	args = append(args, m.Harness...)
	return args
}

func defaultAFLEnv() []string {
	return []string{
		"AFL_SKIP_CPUFREQ=1",
		"AFL_I_DONT_CARE_ABOUT_MISSING_CRASHES=1",
	}
}

// Slave mode specific environment variables
func slaveAFLEnv() []string {
	// slaves run headless against an output directory that is already
	// in use, so the status screen is disabled
	return append(defaultAFLEnv(), "AFL_NO_UI=1")
}

// signalGroup delivers sig to the instance's whole process group.
func signalGroup(pid int, sig unix.Signal) error {
	return unix.Kill(-pid, sig)
}
