package server

import (
	"net/http"
	"strings"
)

// handleSchedulesCollection handles GET /api/schedules.
func (s *Server) handleSchedulesCollection(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r, s.listSchedules, nil, nil, nil)
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.app.StorageManager.Schedules().ListSchedules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]scheduleResponse, 0, len(schedules))
	for _, sch := range schedules {
		out = append(out, toScheduleResponse(sch))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleScheduleItem handles GET/DELETE /api/schedules/{id}.
func (s *Server) handleScheduleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/schedules/"), "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "schedule id required")
		return
	}

	RouteCRUD(w, r,
		func(w http.ResponseWriter, r *http.Request) {
			sch, err := s.app.StorageManager.Schedules().GetSchedule(r.Context(), id)
			if err != nil || sch == nil {
				writeError(w, http.StatusNotFound, "schedule not found")
				return
			}
			writeJSON(w, http.StatusOK, toScheduleResponse(sch))
		},
		nil,
		nil,
		func(w http.ResponseWriter, r *http.Request) {
			if err := s.app.StorageManager.Schedules().DeleteSchedule(r.Context(), id); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			w.WriteHeader(http.StatusOK)
		},
	)
}
