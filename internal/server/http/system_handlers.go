package httpserver

import (
	"net/http"

	"github.com/and161185/authgate/internal/convert"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rep := s.system.Health(r.Context())
	securityHeaders(w)

	status, msg := http.StatusOK, "Service operational"
	if !rep.Healthy {
		status, msg = http.StatusServiceUnavailable, "Service partially degraded"
	}
	writeJSON(w, status, envelope{Success: rep.Healthy, Message: msg, Payload: convert.ToHealth(rep)})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	ov, saved, err := s.system.DescribeSchema(r.Context())
	if err != nil {
		s.log.Error("schema overview failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{
			Message: "Unable to generate database schema overview",
			Code:    "SCHEMA_UNAVAILABLE",
		})
		return
	}
	securityHeaders(w)
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Database schema generated successfully",
		Payload: ov,
		SavedTo: saved,
	})
}
