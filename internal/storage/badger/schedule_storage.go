package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ScheduleStorage implements interfaces.ScheduleStorage for Badger.
type ScheduleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScheduleStorage creates a new ScheduleStorage instance.
func NewScheduleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScheduleStorage {
	return &ScheduleStorage{db: db, logger: logger}
}

func (s *ScheduleStorage) SaveSchedule(ctx context.Context, sch *models.Schedule) error {
	if err := s.db.Store().Insert(sch.ID, sch); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStorage) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var sch models.Schedule
	if err := s.db.Store().Get(id, &sch); err != nil {
		return nil, fmt.Errorf("failed to get schedule %s: %w", id, err)
	}
	return &sch, nil
}

func (s *ScheduleStorage) UpdateSchedule(ctx context.Context, sch *models.Schedule) error {
	if err := s.db.Store().Update(sch.ID, sch); err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStorage) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Schedule{}); err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	return nil
}

func (s *ScheduleStorage) ListSchedules(ctx context.Context) ([]*models.Schedule, error) {
	var schedules []*models.Schedule
	if err := s.db.Store().Find(&schedules, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

func (s *ScheduleStorage) ListEnabledSchedules(ctx context.Context) ([]*models.Schedule, error) {
	var schedules []*models.Schedule
	if err := s.db.Store().Find(&schedules, badgerhold.Where("Enabled").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list enabled schedules: %w", err)
	}
	return schedules, nil
}
