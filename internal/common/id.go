package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique Job ID with the "job_" prefix.
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewPdfID generates a unique DiscoveredPdf ID with the "pdf_" prefix.
func NewPdfID() string {
	return "pdf_" + uuid.New().String()
}

// NewScheduleID generates a unique Schedule ID with the "sched_" prefix.
func NewScheduleID() string {
	return "sched_" + uuid.New().String()
}
