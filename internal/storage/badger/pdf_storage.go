package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// PdfStorage implements interfaces.PdfStorage for Badger, enforcing the
// (job_id, source_url) uniqueness invariant from the data model.
type PdfStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPdfStorage creates a new PdfStorage instance.
func NewPdfStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PdfStorage {
	return &PdfStorage{db: db, logger: logger}
}

func (s *PdfStorage) SavePdf(ctx context.Context, pdf *models.DiscoveredPdf) error {
	existing, err := s.FindByJobAndURL(ctx, pdf.JobID, pdf.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate pdf: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("pdf already discovered for job %s at %s", pdf.JobID, pdf.SourceURL)
	}

	now := time.Now()
	pdf.CreatedAt = now
	pdf.UpdatedAt = now
	if err := s.db.Store().Insert(pdf.ID, pdf); err != nil {
		return fmt.Errorf("failed to save pdf: %w", err)
	}
	return nil
}

func (s *PdfStorage) GetPdf(ctx context.Context, id string) (*models.DiscoveredPdf, error) {
	var pdf models.DiscoveredPdf
	if err := s.db.Store().Get(id, &pdf); err != nil {
		return nil, fmt.Errorf("failed to get pdf %s: %w", id, err)
	}
	return &pdf, nil
}

func (s *PdfStorage) FindByJobAndURL(ctx context.Context, jobID, sourceURL string) (*models.DiscoveredPdf, error) {
	var pdfs []models.DiscoveredPdf
	query := badgerhold.Where("JobID").Eq(jobID).And("SourceURL").Eq(sourceURL)
	if err := s.db.Store().Find(&pdfs, query); err != nil {
		return nil, fmt.Errorf("failed to find pdf: %w", err)
	}
	if len(pdfs) == 0 {
		return nil, nil
	}
	return &pdfs[0], nil
}

func (s *PdfStorage) UpdatePdf(ctx context.Context, pdf *models.DiscoveredPdf) error {
	pdf.UpdatedAt = time.Now()
	if err := s.db.Store().Update(pdf.ID, pdf); err != nil {
		return fmt.Errorf("failed to update pdf: %w", err)
	}
	return nil
}

func (s *PdfStorage) ListByJob(ctx context.Context, jobID string) ([]*models.DiscoveredPdf, error) {
	var pdfs []*models.DiscoveredPdf
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&pdfs, query); err != nil {
		return nil, fmt.Errorf("failed to list pdfs for job %s: %w", jobID, err)
	}
	return pdfs, nil
}

func (s *PdfStorage) CountByJob(ctx context.Context, jobID string) (int, error) {
	count, err := s.db.Store().Count(&models.DiscoveredPdf{}, badgerhold.Where("JobID").Eq(jobID))
	if err != nil {
		return 0, fmt.Errorf("failed to count pdfs for job %s: %w", jobID, err)
	}
	return int(count), nil
}
