package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
)

// jobRunner owns spawning and reaping a single Job's worker sub-process.
type jobRunner struct {
	cfg     Config
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func newJobRunner(cfg Config, storage interfaces.StorageManager, logger arbor.ILogger) *jobRunner {
	return &jobRunner{cfg: cfg, storage: storage, logger: logger}
}

// Run transitions job to crawling, spawns its worker sub-process, streams
// stdout/stderr into the job's log ring buffer, and transitions the job
// to failed on a non-zero exit or an orphaning wall-clock timeout. The
// worker itself drives crawling -> classifying -> uploading -> completed.
func (r *jobRunner) Run(parent context.Context, job *models.Job, onStart func(pid int)) error {
	ctx := parent
	var cancel context.CancelFunc
	if r.cfg.JobWallClockLimit > 0 {
		ctx, cancel = context.WithTimeout(parent, r.cfg.JobWallClockLimit)
		defer cancel()
	}

	job.Status = models.JobStatusCrawling
	if err := r.storage.Jobs().UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist pending->crawling transition: %w", err)
	}

	cmd := buildWorkerCmd(ctx, r.cfg.WorkerBinaryPath, job.ID)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return r.failJob(ctx, job, fmt.Sprintf("failed to attach worker stdout: %v", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return r.failJob(ctx, job, fmt.Sprintf("failed to attach worker stderr: %v", err))
	}

	if err := cmd.Start(); err != nil {
		return r.failJob(ctx, job, fmt.Sprintf("failed to start worker: %v", err))
	}

	job.WorkerPID = cmd.Process.Pid
	if err := r.storage.Jobs().UpdateJob(ctx, job); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("failed to persist worker pid")
	}
	if onStart != nil {
		onStart(cmd.Process.Pid)
	}

	var wg sync.WaitGroup
	var seq uint64
	var seqMu sync.Mutex
	var stderrTail strings.Builder

	wg.Add(2)
	go r.captureStream(job.ID, "stdout", stdout, &seq, &seqMu, nil, &wg)
	go r.captureStream(job.ID, "stderr", stderr, &seq, &seqMu, &stderrTail, &wg)

	waitErr := cmd.Wait()
	wg.Wait()

	now := time.Now()
	job.FinishedAt = &now

	if waitErr != nil {
		job.Status = models.JobStatusFailed
		job.FailureReason = waitErr.Error()
		job.StderrTail = tailLines(stderrTail.String(), 500)
		job.WorkerPID = 0
		if updErr := r.storage.Jobs().UpdateJob(ctx, job); updErr != nil {
			return updErr
		}
		return waitErr
	}

	return nil // the worker itself persisted the terminal (completed) transition
}

func (r *jobRunner) captureStream(jobID, stream string, reader io.Reader, seq *uint64, seqMu *sync.Mutex, tail *strings.Builder, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		seqMu.Lock()
		*seq++
		n := *seq
		seqMu.Unlock()

		entry := models.JobLogEntry{
			AssociatedJobID: jobID,
			Seq:             n,
			Stream:          stream,
			Line:            line,
			FullTimestamp:   time.Now(),
		}
		if err := r.storage.JobLogs().AppendLog(context.Background(), jobID, entry); err != nil {
			r.logger.Debug().Str("job_id", jobID).Err(err).Msg("failed to append worker log line")
		}
		if tail != nil {
			tail.WriteString(line)
			tail.WriteString("\n")
		}
	}
}

func (r *jobRunner) failJob(ctx context.Context, job *models.Job, reason string) error {
	job.Status = models.JobStatusFailed
	job.FailureReason = reason
	job.WorkerPID = 0
	now := time.Now()
	job.FinishedAt = &now
	if err := r.storage.Jobs().UpdateJob(ctx, job); err != nil {
		return err
	}
	return errors.New(reason)
}

func tailLines(s string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}
