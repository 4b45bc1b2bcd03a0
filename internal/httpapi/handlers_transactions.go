package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/financeassistant/backend/internal/apperr"
	"github.com/financeassistant/backend/internal/transactions"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, companyID int64) {
	rows, err := s.transactions.List(r.Context(), companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, companyID int64) {
	var req transactions.CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := s.transactions.Create(r.Context(), companyID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, companyID int64) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apperr.New(apperr.ValidationFailed, "INVALID_ID", "Invalid transaction id"))
		return
	}
	if err := s.transactions.Delete(r.Context(), companyID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
