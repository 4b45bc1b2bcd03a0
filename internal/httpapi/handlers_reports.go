package httpapi

import (
	"net/http"
)

// handlePnL serves the cached profit-and-loss report. period accepts
// month, quarter, year or an explicit YYYY-MM; anything else falls back
// to the current month.
func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request, companyID int64) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	report, err := s.reports.PnL(r.Context(), companyID, period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
