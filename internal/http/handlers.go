package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"moneta/internal/core"
	"moneta/internal/services"
)

const maxBodyBytes = 1 << 16

type saldoRequest struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type saldoResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type transactionRequest struct {
	UserID      int64  `json:"user_id"`
	SaldoID     int64  `json:"saldo_id"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type transactionPatchRequest struct {
	SaldoID     *int64  `json:"saldo_id"`
	Amount      *string `json:"amount"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	SaldoID     int64  `json:"saldo_id"`
	CategoryID  int64  `json:"category_id"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

func toSaldoResponse(s core.Saldo) saldoResponse {
	return saldoResponse{
		ID:          s.ID,
		Name:        s.Name,
		Amount:      s.Amount.String(),
		Description: s.Description,
	}
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		UserID:      tx.UserID,
		SaldoID:     tx.SaldoID,
		CategoryID:  tx.CategoryID,
		Category:    tx.CategoryName,
		Amount:      tx.Amount.String(),
		Type:        string(tx.Type),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "malformed request body")
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleCreateSaldo(w http.ResponseWriter, r *http.Request) {
	var req saldoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeBadRequest(w, "name is required")
		return
	}
	// New saldos may start at any non-negative amount.
	cents := int64(0)
	if strings.TrimSpace(req.Amount) != "" {
		parsed, err := core.ParseDecimalToCents(req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		cents = parsed
	}
	saldo, err := s.saldos.Create(r.Context(), core.Saldo{
		Name:        strings.TrimSpace(req.Name),
		Amount:      core.Money{Cents: cents},
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaldoResponse(saldo))
}

func (s *Server) handleGetSaldo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid saldo id")
		return
	}
	saldo, err := s.saldos.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaldoResponse(saldo))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.CreateTransaction(r.Context(), services.CreateTransactionInput{
		UserID:      req.UserID,
		SaldoID:     req.SaldoID,
		Amount:      core.Money{Cents: cents},
		Type:        core.TransactionType(strings.ToLower(req.Type)),
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid transaction id")
		return
	}
	tx, err := s.transactions.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid transaction id")
		return
	}
	var req transactionPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	patch := services.TransactionPatch{
		SaldoID:     req.SaldoID,
		Description: req.Description,
	}
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Amount = &core.Money{Cents: cents}
	}
	if req.Type != nil {
		t := core.TransactionType(strings.ToLower(*req.Type))
		patch.Type = &t
	}
	tx, err := s.ledger.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid transaction id")
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type statusResponse struct {
	Ready         bool   `json:"ready"`
	LastTrained   string `json:"last_trained,omitempty"`
	PrimaryExists bool   `json:"primary_exists"`
	BackupExists  bool   `json:"backup_exists"`
	Labels        int    `json:"labels"`
}

func (s *Server) handleClassifierStatus(w http.ResponseWriter, r *http.Request) {
	status := s.classifier.Status()
	resp := statusResponse{
		Ready:         status.Ready,
		PrimaryExists: status.PrimaryExists,
		BackupExists:  status.BackupExists,
		Labels:        status.Labels,
	}
	if !status.LastTrained.IsZero() {
		resp.LastTrained = status.LastTrained.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassifierTrain(w http.ResponseWriter, r *http.Request) {
	trained, err := s.classifier.Train(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"trained": trained})
}

type predictRequest struct {
	Description string `json:"description"`
	Type        string `json:"type"`
}

func (s *Server) handleClassifierPredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t := core.TransactionType(strings.ToLower(req.Type))
	if !t.Valid() {
		writeError(w, r, core.ErrInvalidTransactionType)
		return
	}
	label := s.classifier.Predict(r.Context(), req.Description, t)
	writeJSON(w, http.StatusOK, map[string]string{"label": label})
}

func (s *Server) handleClassifierReset(w http.ResponseWriter, r *http.Request) {
	if err := s.classifier.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	report, err := s.evaluation.Evaluate(r.Context(), queryInt(r, "sample_cap", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCrossValidate(w http.ResponseWriter, r *http.Request) {
	folds := queryInt(r, "folds", 5)
	report, err := s.evaluation.CrossValidate(r.Context(), folds, queryInt(r, "sample_cap", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type periodSumResponse struct {
	Period string `json:"period"`
	Type   string `json:"type"`
	Sum    string `json:"sum"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(-1, 0, 0)
	to := now
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "invalid 'from' timestamp, want RFC3339")
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "invalid 'to' timestamp, want RFC3339")
			return
		}
		to = parsed
	}
	sums, err := s.transactions.SumByPeriod(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]periodSumResponse, 0, len(sums))
	for _, ps := range sums {
		resp = append(resp, periodSumResponse{
			Period: ps.Period,
			Type:   string(ps.Type),
			Sum:    ps.Sum.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
