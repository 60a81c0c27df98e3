package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ResumeCorpus is the input-corpus sentinel that tells afl-fuzz to
// resume from the queues already present in the output directory
// instead of reading a fresh seed corpus.
const ResumeCorpus = "-"

type AppConfig struct {
	TargetConfig  string // hal_fuzz machine description (yaml), passed to the harness via -c
	InputCorpus   string // seed corpus directory, or ResumeCorpus
	OutputDir     string // shared sync directory for all instances
	WorkerCount   int    // slave instances in addition to the single master
	AFLBinary     string
	PythonBinary  string
	HarnessModule string

	MasterTimeoutMs int // soft, afl may extend it once (-t <ms>+)
	SlaveTimeoutMs  int // hard (-t <ms>)
	ShutdownGrace   time.Duration

	CrashDir string // where deduped crashes and the crash index live
	LogLevel string
}

func LoadConfig() *AppConfig {
	// use a temporary logger for now
	logger := zap.NewExample().Named("config")

	godotenv.Load()

	config := &AppConfig{
		TargetConfig:  getEnv("TARGET_CONFIG", "./st-plc.yml"),
		InputCorpus:   getEnv("INPUT_CORPUS", ResumeCorpus),
		OutputDir:     getEnv("OUTPUT_DIR", "./output_new2"),
		WorkerCount:   parseInt(os.Getenv("WORKER_COUNT"), 22),
		AFLBinary:     getEnv("AFL_BINARY", "afl-fuzz"),
		PythonBinary:  getEnv("PYTHON_BINARY", "python3"),
		HarnessModule: getEnv("HARNESS_MODULE", "hal_fuzz"),

		MasterTimeoutMs: parseInt(os.Getenv("MASTER_TIMEOUT_MS"), 1000),
		SlaveTimeoutMs:  parseInt(os.Getenv("SLAVE_TIMEOUT_MS"), 2000),
		ShutdownGrace:   parseDuration(os.Getenv("SHUTDOWN_GRACE"), 5*time.Second),

		CrashDir: getEnv("CRASH_DIR", "./crash_store"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if config.WorkerCount < 0 {
		logger.Fatal("WORKER_COUNT must be >= 0",
			zap.Int("worker_count", config.WorkerCount))
	}
	if config.MasterTimeoutMs <= 0 || config.SlaveTimeoutMs <= 0 {
		logger.Fatal("per-instance timeouts must be positive",
			zap.Int("master_timeout_ms", config.MasterTimeoutMs),
			zap.Int("slave_timeout_ms", config.SlaveTimeoutMs))
	}

	return config
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
