package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ken860819/loan-ai-system/internal/domain"
	"github.com/ken860819/loan-ai-system/internal/infra/observability"
	"github.com/ken860819/loan-ai-system/internal/port"
	"github.com/ken860819/loan-ai-system/internal/service"
)

var tracer = otel.Tracer("handler")

// Sessions holds the per-submission evaluation state between the steps of
// one KYC flow.
type Sessions = port.Cache[*domain.Evaluation]

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(pipeline *service.Pipeline, sessions Sessions, store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Evaluation flow: submit KYC, then decide and provision against
		// the resulting session.
		r.Post("/evaluations", createEvaluationHandler(pipeline, sessions, logger))
		r.Get("/evaluations/{sessionId}", getEvaluationHandler(sessions, logger))
		r.Post("/evaluations/{sessionId}/decision", decideEvaluationHandler(pipeline, sessions, logger))
		r.Post("/evaluations/{sessionId}/provision", provisionHandler(pipeline, sessions, logger))

		// Revolving-credit ledger.
		r.Get("/accounts/{userId}", getAccountHandler(pipeline, logger))
		r.Post("/accounts/{userId}/borrow", ledgerTransitionHandler(pipeline.Borrow, "POST /v1/accounts/{userId}/borrow", logger))
		r.Post("/accounts/{userId}/repay", ledgerTransitionHandler(pipeline.Repay, "POST /v1/accounts/{userId}/repay", logger))
		r.Get("/accounts/{userId}/transactions", listTransactionsHandler(pipeline, logger))

		// Engine counters.
		r.Get("/metrics/engine", engineMetricsHandler(metrics))
	})

	return r
}

func healthzHandler(store port.LedgerStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		dbStatus := "ok"
		code := http.StatusOK
		if err := store.Ping(r.Context()); err != nil {
			status, dbStatus = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{
			"status":   status,
			"database": dbStatus,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// Evaluation flow
// ============================================================

func createEvaluationHandler(pipeline *service.Pipeline, sessions Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/evaluations")
		defer span.End()

		var kyc domain.KYCRecord
		if err := json.NewDecoder(r.Body).Decode(&kyc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		eval, err := pipeline.Evaluate(ctx, kyc)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("session.id", eval.SessionID))

		sessions.Set(eval.SessionID, eval)
		writeJSON(w, http.StatusCreated, eval)
	}
}

func getEvaluationHandler(sessions Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/evaluations/{sessionId}")
		defer span.End()

		eval, ok := sessions.Get(chi.URLParam(r, "sessionId"))
		if !ok {
			writeError(w, http.StatusNotFound, "evaluation session not found or expired")
			return
		}
		writeJSON(w, http.StatusOK, eval)
	}
}

func decideEvaluationHandler(pipeline *service.Pipeline, sessions Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/evaluations/{sessionId}/decision")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		eval, ok := sessions.Get(sessionID)
		if !ok {
			writeError(w, http.StatusNotFound, "evaluation session not found or expired")
			return
		}

		pipeline.DecideAndLimit(ctx, eval)
		sessions.Set(sessionID, eval)

		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": eval.SessionID,
			"pd":         eval.PD,
			"decision":   eval.Decision,
			"limit":      eval.Limit,
		})
	}
}

func provisionHandler(pipeline *service.Pipeline, sessions Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/evaluations/{sessionId}/provision")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		eval, ok := sessions.Get(sessionID)
		if !ok {
			writeError(w, http.StatusNotFound, "evaluation session not found or expired")
			return
		}
		if !eval.Decided {
			writeError(w, http.StatusConflict, "evaluation has no decision yet")
			return
		}
		if eval.Decision != domain.DecisionApprove {
			writeError(w, http.StatusConflict, "only approved evaluations can be provisioned")
			return
		}

		// A session provisions at most one account. Re-posting returns it.
		if eval.UserID != "" {
			account, err := pipeline.GetAccount(ctx, eval.UserID)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, account)
			return
		}

		account, err := pipeline.Provision(ctx, eval)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		eval.UserID = account.UserID
		sessions.Set(sessionID, eval)

		writeJSON(w, http.StatusCreated, account)
	}
}

// ============================================================
// Ledger
// ============================================================

func getAccountHandler(pipeline *service.Pipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{userId}")
		defer span.End()

		account, err := pipeline.GetAccount(ctx, chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

// ledgerTransitionHandler serves both borrow and repay; the two differ only
// in the pipeline method.
func ledgerTransitionHandler(
	transition func(context.Context, string, int64) (*domain.Account, error),
	spanName string,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), spanName)
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		account, err := transition(ctx, userID, req.Amount)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func listTransactionsHandler(pipeline *service.Pipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{userId}/transactions")
		defer span.End()

		userID := chi.URLParam(r, "userId")

		// 404 for unknown accounts, empty list for known-but-quiet ones.
		if _, err := pipeline.GetAccount(ctx, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		txs, err := pipeline.ListTransactions(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
	}
}

// ============================================================
// Metrics
// ============================================================

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetEngineSnapshot()
		snapshot.GeneratedAt = time.Now().UTC()
		writeJSON(w, http.StatusOK, snapshot)
	}
}
