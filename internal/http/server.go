// Package http exposes the core operation surface as a JSON API: ledger
// writes, classifier lifecycle, evaluation and period summaries.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"moneta/internal/services"
	"moneta/internal/storage"
)

type Server struct {
	http.Server

	ledger       *services.LedgerService
	classifier   *services.ClassifierService
	evaluation   *services.EvaluationService
	transactions services.TransactionRepo
	saldos       *storage.SaldoStore
}

func NewServer(addr string, ledger *services.LedgerService, classifier *services.ClassifierService, evaluation *services.EvaluationService, transactions services.TransactionRepo, saldos *storage.SaldoStore) *Server {
	s := &Server{
		ledger:       ledger,
		classifier:   classifier,
		evaluation:   evaluation,
		transactions: transactions,
		saldos:       saldos,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleHealth)

	mux.HandleFunc("POST /saldos", s.handleCreateSaldo)
	mux.HandleFunc("GET /saldos/{id}", s.handleGetSaldo)

	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /classifier/status", s.handleClassifierStatus)
	mux.HandleFunc("POST /classifier/train", s.handleClassifierTrain)
	mux.HandleFunc("POST /classifier/predict", s.handleClassifierPredict)
	mux.HandleFunc("POST /classifier/reset", s.handleClassifierReset)

	mux.HandleFunc("GET /evaluation", s.handleEvaluate)
	mux.HandleFunc("GET /evaluation/cross-validation", s.handleCrossValidate)

	mux.HandleFunc("GET /summary", s.handleSummary)

	s.Server = http.Server{
		Addr:           addr,
		Handler:        withRequestLog(withSecurityHeaders(mux)),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.DebugContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}
