package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docharvest/internal/app"
	"github.com/ternarybob/docharvest/internal/common"
)

func TestNew_WiresStorageAndSupervisor(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Store.Badger.Path = t.TempDir()
	cfg.Scheduler.Enabled = false
	cfg.Supervisor.WorkerBinaryPath = "/nonexistent/docharvest-worker"

	a, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	require.NotNil(t, a.StorageManager)
	require.NotNil(t, a.Supervisor)
	assert.Nil(t, a.Scheduler, "scheduler disabled in config should stay nil")

	assert.NoError(t, a.Close())
}

func TestNew_StartsSchedulerWhenEnabled(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Store.Badger.Path = t.TempDir()
	cfg.Scheduler.Enabled = true
	cfg.Supervisor.WorkerBinaryPath = "/nonexistent/docharvest-worker"

	a, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	assert.NotNil(t, a.Scheduler, "scheduler enabled in config should start")

	assert.NoError(t, a.Close())
}

func TestNew_FailsOnUnopenableStore(t *testing.T) {
	cfg := common.NewDefaultConfig()
	// A path nested under a file (not a directory) can never be opened as a
	// Badger directory, forcing badger.NewManager to return an error.
	cfg.Store.Badger.Path = "/dev/null/not-a-directory"
	cfg.Scheduler.Enabled = false

	_, err := app.New(cfg, arbor.NewLogger())
	assert.Error(t, err)
}

func TestClose_IsSafeWithoutScheduler(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Store.Badger.Path = t.TempDir()
	cfg.Scheduler.Enabled = false
	cfg.Supervisor.WorkerBinaryPath = "/nonexistent/docharvest-worker"

	a, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)

	assert.NoError(t, a.Close())
}
