package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TARGET_CONFIG", "INPUT_CORPUS", "OUTPUT_DIR", "WORKER_COUNT",
		"AFL_BINARY", "PYTHON_BINARY", "HARNESS_MODULE",
		"MASTER_TIMEOUT_MS", "SLAVE_TIMEOUT_MS", "SHUTDOWN_GRACE",
		"CRASH_DIR", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadConfig()

	assert.Equal(t, "./st-plc.yml", cfg.TargetConfig)
	assert.Equal(t, ResumeCorpus, cfg.InputCorpus)
	assert.Equal(t, "./output_new2", cfg.OutputDir)
	assert.Equal(t, 22, cfg.WorkerCount)
	assert.Equal(t, "afl-fuzz", cfg.AFLBinary)
	assert.Equal(t, "python3", cfg.PythonBinary)
	assert.Equal(t, "hal_fuzz", cfg.HarnessModule)
	assert.Equal(t, 1000, cfg.MasterTimeoutMs)
	assert.Equal(t, 2000, cfg.SlaveTimeoutMs)
	assert.Equal(t, 5*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TARGET_CONFIG", "/fw/motor.yml")
	t.Setenv("INPUT_CORPUS", "/corpus/in")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("SLAVE_TIMEOUT_MS", "3000")
	t.Setenv("SHUTDOWN_GRACE", "10s")

	cfg := LoadConfig()

	assert.Equal(t, "/fw/motor.yml", cfg.TargetConfig)
	assert.Equal(t, "/corpus/in", cfg.InputCorpus)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 3000, cfg.SlaveTimeoutMs)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
}

func TestLoadConfigBadNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_COUNT", "plenty")
	t.Setenv("SHUTDOWN_GRACE", "soon")

	cfg := LoadConfig()

	assert.Equal(t, 22, cfg.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.ShutdownGrace)
}
