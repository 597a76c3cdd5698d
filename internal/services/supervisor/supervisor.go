// -----------------------------------------------------------------------
// Job Supervisor - owns Job lifecycle, isolates each Job in a child
// sub-process, enforces the state machine and admission limits.
// -----------------------------------------------------------------------

package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
)

// Config controls admission, cancellation grace and the worker binary
// invoked per Job, mirroring common.SupervisorConfig.
type Config struct {
	MaxConcurrentJobs  int
	WorkerGraceSeconds int
	WorkerBinaryPath   string
	JobWallClockLimit  time.Duration
}

// Supervisor enforces the Job state machine, spawning one OS sub-process
// per active Job so headless-browser and LLM work never blocks the API
// goroutine.
type Supervisor struct {
	cfg     Config
	storage interfaces.StorageManager
	logger  arbor.ILogger

	mu       sync.Mutex
	handles  map[string]*models.WorkerHandle
	sem      chan struct{}
	pending  []string
	pendingC chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a Supervisor. Call Start to begin draining the admission
// queue and Sweep to reconcile state left over from a previous process.
func New(cfg Config, storage interfaces.StorageManager, logger arbor.ILogger) *Supervisor {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 8
	}
	if cfg.WorkerGraceSeconds <= 0 {
		cfg.WorkerGraceSeconds = 10
	}
	return &Supervisor{
		cfg:      cfg,
		storage:  storage,
		logger:   logger,
		handles:  make(map[string]*models.WorkerHandle),
		sem:      make(chan struct{}, cfg.MaxConcurrentJobs),
		pendingC: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Sweep reconciles Jobs left non-terminal by a previous Supervisor process
// (which, by construction, holds no WorkerHandles across a restart): each
// is moved to failed with reason "worker lost".
func (s *Supervisor) Sweep(ctx context.Context) error {
	active, err := s.storage.Jobs().ListActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active jobs for orphan sweep: %w", err)
	}
	for _, job := range active {
		job.Status = models.JobStatusFailed
		job.FailureReason = "worker lost"
		job.WorkerPID = 0
		now := time.Now()
		job.FinishedAt = &now
		if err := s.storage.Jobs().UpdateJob(ctx, job); err != nil {
			s.logger.Error().Str("job_id", job.ID).Err(err).Msg("failed to mark orphaned job as failed")
			continue
		}
		s.logger.Warn().Str("job_id", job.ID).Msg("orphaned job marked failed on supervisor startup")
	}
	return nil
}

// Start launches the single FIFO admission dispatcher goroutine.
func (s *Supervisor) Start(ctx context.Context) {
	go s.dispatchLoop(ctx)
}

// Stop signals the dispatcher to exit; it does not cancel running jobs.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Submit enqueues a pending Job for admission. The Job must already be
// persisted in JobStatusPending.
func (s *Supervisor) Submit(jobID string) {
	s.mu.Lock()
	s.pending = append(s.pending, jobID)
	s.mu.Unlock()

	select {
	case s.pendingC <- struct{}{}:
	default:
	}
}

func (s *Supervisor) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-s.pendingC:
		}

		for {
			jobID, ok := s.nextPending()
			if !ok {
				break
			}
			select {
			case s.sem <- struct{}{}:
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
			go s.runJob(ctx, jobID)
		}
	}
}

func (s *Supervisor) nextPending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return "", false
	}
	jobID := s.pending[0]
	s.pending = s.pending[1:]
	return jobID, true
}

func (s *Supervisor) runJob(ctx context.Context, jobID string) {
	defer func() { <-s.sem }()

	job, err := s.storage.Jobs().GetJob(ctx, jobID)
	if err != nil {
		s.logger.Error().Str("job_id", jobID).Err(err).Msg("failed to load job for dispatch")
		return
	}
	if !job.CanTransitionTo(models.JobStatusCrawling) {
		s.logger.Warn().Str("job_id", jobID).Str("status", string(job.Status)).Msg("job no longer admissible, skipping")
		return
	}

	runner := newJobRunner(s.cfg, s.storage, s.logger)
	onStart := func(pid int) {
		s.registerHandle(&models.WorkerHandle{JobID: jobID, PID: pid, ProcessGroup: pid, StartedAt: time.Now()})
	}
	defer s.unregisterHandle(jobID)

	if err := runner.Run(ctx, job, onStart); err != nil {
		s.logger.Error().Str("job_id", jobID).Err(err).Msg("job run failed")
	}
}

// Cancel requests cancellation of a running Job: sets cancel_requested,
// then signals the child process group (SIGTERM, escalating to SIGKILL
// after the grace period).
func (s *Supervisor) Cancel(ctx context.Context, jobID string) error {
	job, err := s.storage.Jobs().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s is already terminal (%s)", jobID, job.Status)
	}

	job.CancelRequested = true
	if err := s.storage.Jobs().UpdateJob(ctx, job); err != nil {
		return err
	}

	s.mu.Lock()
	handle, ok := s.handles[jobID]
	s.mu.Unlock()
	if !ok {
		return nil // not yet running a sub-process; the worker will see cancel_requested on start
	}
	return signalProcessGroup(handle, time.Duration(s.cfg.WorkerGraceSeconds)*time.Second, s.logger)
}

func (s *Supervisor) registerHandle(h *models.WorkerHandle) {
	s.mu.Lock()
	s.handles[h.JobID] = h
	s.mu.Unlock()
}

func (s *Supervisor) unregisterHandle(jobID string) {
	s.mu.Lock()
	delete(s.handles, jobID)
	s.mu.Unlock()
}

// buildWorkerCmd constructs the child process invocation for a Job.
func buildWorkerCmd(ctx context.Context, binaryPath, jobID string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binaryPath, "-job-id", jobID)
	setProcessGroup(cmd)
	return cmd
}
