package server

import (
	"net/http"

	"github.com/ternarybob/docharvest/internal/common"
)

// setupRoutes configures the HTTP API surface.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/active-jobs", s.handleActiveJobs)

	mux.HandleFunc("/api/crawl-jobs", s.handleCrawlJobsCollection)
	mux.HandleFunc("/api/crawl-jobs/", func(w http.ResponseWriter, r *http.Request) {
		s.handleJobItemRoutes(w, r, "/api/crawl-jobs/")
	})

	mux.HandleFunc("/api/bulk-upload", s.handleBulkUpload)
	mux.HandleFunc("/api/bulk-upload-jobs/", func(w http.ResponseWriter, r *http.Request) {
		s.handleJobItemRoutes(w, r, "/api/bulk-upload-jobs/")
	})

	mux.HandleFunc("/api/schedules", s.handleSchedulesCollection)
	mux.HandleFunc("/api/schedules/", s.handleScheduleItem)

	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler)

	mux.HandleFunc("/api/", s.handleNotFound)

	return mux
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": common.GetVersion()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "no such route")
}
