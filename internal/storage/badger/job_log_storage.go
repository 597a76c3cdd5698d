package badger

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// maxRingBufferLines bounds how many log lines are retained per job.
const maxRingBufferLines = 500

// logSequence is a global counter ensuring unique log keys even within
// the same nanosecond.
var logSequence uint64

// JobLogStorage implements interfaces.JobLogStorage for Badger, keeping a
// bounded ring buffer of each job's captured worker output.
type JobLogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobLogStorage creates a new JobLogStorage instance.
func NewJobLogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobLogStorage {
	return &JobLogStorage{db: db, logger: logger}
}

func (s *JobLogStorage) AppendLog(ctx context.Context, jobID string, entry models.JobLogEntry) error {
	entry.AssociatedJobID = jobID

	seq := atomic.AddUint64(&logSequence, 1)
	entry.Seq = seq
	if entry.FullTimestamp.IsZero() {
		entry.FullTimestamp = time.Now()
	}
	// trimToRingBuffer rebuilds this key from FullTimestamp and Seq.
	key := fmt.Sprintf("%s_%d_%d", jobID, entry.FullTimestamp.UnixNano(), seq)

	if err := s.db.Store().Insert(key, &entry); err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}

	return s.trimToRingBuffer(ctx, jobID)
}

func (s *JobLogStorage) AppendLogs(ctx context.Context, jobID string, entries []models.JobLogEntry) error {
	for _, entry := range entries {
		if err := s.AppendLog(ctx, jobID, entry); err != nil {
			return err
		}
	}
	return nil
}

// trimToRingBuffer deletes the oldest entries once a job exceeds
// maxRingBufferLines, keeping only the most recent lines.
func (s *JobLogStorage) trimToRingBuffer(ctx context.Context, jobID string) error {
	count, err := s.CountLogs(ctx, jobID)
	if err != nil {
		return err
	}
	if count <= maxRingBufferLines {
		return nil
	}

	overflow := count - maxRingBufferLines
	var oldest []models.JobLogEntry
	query := badgerhold.Where("AssociatedJobID").Eq(jobID).SortBy("FullTimestamp").Limit(overflow)
	if err := s.db.Store().Find(&oldest, query); err != nil {
		return fmt.Errorf("failed to find overflow logs: %w", err)
	}
	for _, entry := range oldest {
		key := fmt.Sprintf("%s_%d_%d", entry.AssociatedJobID, entry.FullTimestamp.UnixNano(), entry.Seq)
		_ = s.db.Store().Delete(key, &models.JobLogEntry{})
	}
	return nil
}

func (s *JobLogStorage) GetLogs(ctx context.Context, jobID string, limit int) ([]models.JobLogEntry, error) {
	var logs []models.JobLogEntry
	query := badgerhold.Where("AssociatedJobID").Eq(jobID).SortBy("FullTimestamp").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := s.db.Store().Find(&logs, query); err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	return logs, nil
}

func (s *JobLogStorage) DeleteLogs(ctx context.Context, jobID string) error {
	if err := s.db.Store().DeleteMatching(&models.JobLogEntry{}, badgerhold.Where("AssociatedJobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete logs: %w", err)
	}
	return nil
}

func (s *JobLogStorage) CountLogs(ctx context.Context, jobID string) (int, error) {
	count, err := s.db.Store().Count(&models.JobLogEntry{}, badgerhold.Where("AssociatedJobID").Eq(jobID))
	if err != nil {
		return 0, fmt.Errorf("failed to count logs: %w", err)
	}
	return int(count), nil
}
