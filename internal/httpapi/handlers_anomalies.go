package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/financeassistant/backend/internal/apperr"
)

// anomalyView is the wire shape of one flagged transaction.
type anomalyView struct {
	ID            int64           `json:"id"`
	TransactionID *int64          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	DetectedAt    string          `json:"detectedAt"`
}

func (s *Server) handleListAnomalies(w http.ResponseWriter, r *http.Request, companyID int64) {
	rows, err := s.store.ListAnomalies(r.Context(), s.store.DB(), companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]anomalyView, 0, len(rows))
	for _, a := range rows {
		out = append(out, anomalyView{
			ID:            a.ID,
			TransactionID: a.TransactionID,
			Amount:        a.Amount,
			DetectedAt:    a.DetectedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDismissAnomaly deletes one anomaly row. A missing id or one
// belonging to another tenant is a silent no-op: dismissals race with
// dashboard refreshes, and 204-either-way avoids confirming foreign ids.
func (s *Server) handleDismissAnomaly(w http.ResponseWriter, r *http.Request, companyID int64) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apperr.New(apperr.ValidationFailed, "INVALID_ID", "Invalid anomaly id"))
		return
	}
	anomaly, err := s.store.FindAnomalyByID(r.Context(), s.store.DB(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if anomaly != nil && anomaly.CompanyID == companyID {
		if err := s.store.DeleteAnomaly(r.Context(), s.store.DB(), id); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
