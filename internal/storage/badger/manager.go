package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/common"
	"github.com/ternarybob/docharvest/internal/interfaces"
)

// Manager implements interfaces.StorageManager for Badger, wiring the
// Job/Pdf/Schedule/JobLog stores behind a single handle.
type Manager struct {
	db       *BadgerDB
	job      interfaces.JobStorage
	pdf      interfaces.PdfStorage
	schedule interfaces.ScheduleStorage
	jobLog   interfaces.JobLogStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		job:      NewJobStorage(db, logger),
		pdf:      NewPdfStorage(db, logger),
		schedule: NewScheduleStorage(db, logger),
		jobLog:   NewJobLogStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Jobs returns the Job storage.
func (m *Manager) Jobs() interfaces.JobStorage { return m.job }

// Pdfs returns the DiscoveredPdf storage.
func (m *Manager) Pdfs() interfaces.PdfStorage { return m.pdf }

// Schedules returns the Schedule storage.
func (m *Manager) Schedules() interfaces.ScheduleStorage { return m.schedule }

// JobLogs returns the JobLogEntry ring-buffer storage.
func (m *Manager) JobLogs() interfaces.JobLogStorage { return m.jobLog }

// Close closes the database connection.
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
