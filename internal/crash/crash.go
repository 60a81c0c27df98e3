package crash

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/daniele122008/hal-fuzz-extra/config"
	"github.com/daniele122008/hal-fuzz-extra/internal/types"
	"github.com/daniele122008/hal-fuzz-extra/internal/utils"
	"github.com/daniele122008/hal-fuzz-extra/pkg/database"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CrashManager collects crash files found by the session's watchdogs,
// deduplicates them by content hash, copies them into a stable crash
// store and records them in the local crash index.
type CrashManager struct {
	db     *gorm.DB
	logger *zap.Logger

	crashFolder string
	crashChan   chan types.CrashMessage
	wg          sync.WaitGroup
	done        chan struct{}
}

func NewCrashManager(appConfig *config.AppConfig, db *gorm.DB, logger *zap.Logger, lifeCycle fx.Lifecycle) *CrashManager {
	if err := os.MkdirAll(appConfig.CrashDir, 0755); err != nil {
		// without a crash store there is no point in continuing
		logger.Fatal("failed to create crash store folder", zap.Error(err))
		return nil
	}

	c := &CrashManager{
		db,
		logger,
		appConfig.CrashDir,
		make(chan types.CrashMessage, 1024),
		sync.WaitGroup{},
		make(chan struct{}),
	}

	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.logger.Debug("starting crash manager")
			go c.start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.logger.Debug("stopping crash manager")
			c.wg.Wait() // wait until all registered channels are closed
			close(c.crashChan)
			<-c.done // wait until all pending crashes are processed
			return nil
		},
	})

	return c
}

// RegisterCrashChan routes the messages of rCh into the fan-in channel.
func (c *CrashManager) RegisterCrashChan(rCh <-chan types.CrashMessage) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for crash := range rCh {
			c.crashChan <- crash
		}
		c.logger.Debug("crash channel closed")
	}()
}

func (c *CrashManager) start() {
	defer close(c.done)
	for crash := range c.crashChan {
		if err := c.processCrashFile(crash); err != nil {
			c.logger.Error("failed to process crash file",
				zap.String("crash_file", crash.CrashFile), zap.Error(err))
		}
	}
}

// processCrashFile indexes a single crash file
func (c *CrashManager) processCrashFile(msg types.CrashMessage) error {
	crashData, err := os.ReadFile(msg.CrashFile)
	if err != nil {
		return fmt.Errorf("failed to read crash file: %w", err)
	}
	crashMd5 := md5.Sum(crashData)
	md5Hex := hex.EncodeToString(crashMd5[:])

	seen, err := database.HasCrash(context.Background(), c.db, md5Hex)
	if err != nil {
		return fmt.Errorf("failed to query crash index: %w", err)
	}
	if seen {
		c.logger.Debug("duplicate crash ignored",
			zap.String("md5", md5Hex), zap.String("instance", msg.Instance))
		return nil
	}

	crashStore := filepath.Join(c.crashFolder, msg.Session.ID)
	if err := os.MkdirAll(crashStore, 0755); err != nil {
		return fmt.Errorf("failed to create crash store directory: %w", err)
	}
	crashPath := filepath.Join(crashStore, md5Hex)
	if err := utils.CopyFile(msg.CrashFile, crashPath); err != nil {
		return fmt.Errorf("failed to store crash file: %w", err)
	}

	record := database.NewCrash(
		msg.Session.ID,
		msg.Session.TargetName,
		msg.Instance,
		crashPath,
		md5Hex,
	)
	if _, err := database.AddCrash(context.Background(), c.db, record); err != nil {
		return fmt.Errorf("failed to index crash: %w", err)
	}

	c.logger.Info("new crash indexed",
		zap.String("md5", md5Hex),
		zap.String("instance", msg.Instance),
		zap.String("path", crashPath))
	return nil
}
