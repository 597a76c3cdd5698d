//go:build windows

package supervisor

import (
	"os/exec"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/models"
)

// setProcessGroup is a no-op on Windows; there is no POSIX process-group
// kill. signalProcessGroup only calls handle.Cancel when one is set, and
// the Supervisor registers handles without one, so a cancelled worker
// stops by observing cancel_requested.
func setProcessGroup(cmd *exec.Cmd) {}

func signalProcessGroup(handle *models.WorkerHandle, grace time.Duration, logger arbor.ILogger) error {
	if handle.Cancel != nil {
		handle.Cancel()
	}
	return nil
}
