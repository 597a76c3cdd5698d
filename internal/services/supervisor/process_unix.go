//go:build !windows

package supervisor

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/models"
)

// setProcessGroup puts the child in its own process group so the whole
// group (including any chromedp-spawned chrome subprocess) can be
// signalled together.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalProcessGroup sends SIGTERM to the worker's process group, then
// SIGKILL if it has not exited within grace.
func signalProcessGroup(handle *models.WorkerHandle, grace time.Duration, logger arbor.ILogger) error {
	if handle.ProcessGroup == 0 {
		return fmt.Errorf("no process group recorded for job %s", handle.JobID)
	}

	if err := syscall.Kill(-handle.ProcessGroup, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			return nil // already exited
		}
		return fmt.Errorf("failed to SIGTERM process group %d: %w", handle.ProcessGroup, err)
	}

	go func() {
		time.Sleep(grace)
		if err := syscall.Kill(-handle.ProcessGroup, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
			logger.Warn().Str("job_id", handle.JobID).Err(err).Msg("SIGKILL of worker process group failed")
		}
	}()

	return nil
}
