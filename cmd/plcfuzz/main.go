package main

import (
	"flag"

	"github.com/daniele122008/hal-fuzz-extra/config"
	"github.com/daniele122008/hal-fuzz-extra/internal/crash"
	"github.com/daniele122008/hal-fuzz-extra/internal/session"
	"github.com/daniele122008/hal-fuzz-extra/pkg/database"
	"github.com/daniele122008/hal-fuzz-extra/pkg/logger"
	"github.com/daniele122008/hal-fuzz-extra/pkg/watchdog"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	targetConfig := flag.String("target", "", "target machine description (overrides TARGET_CONFIG)")
	inputCorpus := flag.String("input", "", "seed corpus dir, or '-' to resume (overrides INPUT_CORPUS)")
	outputDir := flag.String("output", "", "shared sync dir (overrides OUTPUT_DIR)")
	workerCount := flag.Int("workers", -1, "slave instance count (overrides WORKER_COUNT)")
	flag.Parse()

	loadConfig := func() *config.AppConfig {
		cfg := config.LoadConfig()
		if *targetConfig != "" {
			cfg.TargetConfig = *targetConfig
		}
		if *inputCorpus != "" {
			cfg.InputCorpus = *inputCorpus
		}
		if *outputDir != "" {
			cfg.OutputDir = *outputDir
		}
		if *workerCount >= 0 {
			cfg.WorkerCount = *workerCount
		}
		return cfg
	}

	app := fx.New(
		fx.Provide(
			loadConfig,                  // inject config
			logger.NewLogger,            // inject logger
			database.NewCrashDB,         // inject crash index
			watchdog.NewWatchDogFactory, // inject watchdog factory
			crash.NewCrashManager,       // inject crash manager
			session.NewSessionLauncher,  // inject session launcher
		),
		fx.Invoke(
			session.NewSessionRunner, // run the fuzzing session
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zap.DebugLevel)
			return &zlogger
		}),
	)
	app.Run()
}
