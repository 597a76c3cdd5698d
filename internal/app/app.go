// -----------------------------------------------------------------------
// App wires Config, Logger, the Badger state store, the Job Supervisor
// and the weekly-recrawl Scheduler for the API server process. The
// crawl/classify/upload pipeline itself runs in a separate cmd/worker
// sub-process per Job, spawned by the Supervisor (C6/C5).
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docharvest/internal/common"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/services/scheduler"
	"github.com/ternarybob/docharvest/internal/services/supervisor"
	"github.com/ternarybob/docharvest/internal/storage/badger"
)

// App holds the API server process's dependencies.
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	Supervisor     *supervisor.Supervisor
	Scheduler      *scheduler.Service

	ctx       context.Context
	cancelCtx context.CancelFunc
}

// New initializes the application: storage, orphan sweep, the
// Supervisor's admission dispatcher, and (if enabled) the weekly
// recrawl Scheduler.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	a.ctx, a.cancelCtx = context.WithCancel(context.Background())

	storageManager, err := badger.NewManager(logger, &cfg.Store.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	sup := supervisor.New(supervisor.Config{
		MaxConcurrentJobs:  cfg.Supervisor.MaxConcurrentJobs,
		WorkerGraceSeconds: cfg.Supervisor.WorkerGraceSeconds,
		WorkerBinaryPath:   cfg.Supervisor.WorkerBinaryPath,
		JobWallClockLimit:  cfg.Supervisor.JobWallClockLimit,
	}, storageManager, logger)
	a.Supervisor = sup

	if err := sup.Sweep(a.ctx); err != nil {
		logger.Warn().Err(err).Msg("orphan sweep failed on startup")
	}
	sup.Start(a.ctx)
	logger.Info().Int("max_concurrent_jobs", cfg.Supervisor.MaxConcurrentJobs).Msg("job supervisor started")

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewService(storageManager.Schedules(), storageManager.Jobs(), sup.Submit, logger)
		if err := sched.Start(a.ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to start weekly recrawl scheduler")
		} else {
			a.Scheduler = sched
			logger.Info().Msg("weekly recrawl scheduler started")
		}
	}

	logger.Info().
		Str("store_path", cfg.Store.Badger.Path).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("application initialization complete")

	return a, nil
}

// Close stops the Scheduler and Supervisor and releases storage.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Supervisor != nil {
		a.Supervisor.Stop()
	}
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	a.Logger.Info().Msg("flushing context logs")
	common.Stop()

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("storage closed")
	}
	return nil
}
