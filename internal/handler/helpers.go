package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ken860819/loan-ai-system/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var insufficientCredit *domain.ErrInsufficientCredit
	var overRepayment *domain.ErrOverRepayment

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &insufficientCredit):
		logger.Warn("insufficient credit",
			zap.Int64("available", insufficientCredit.Available),
			zap.Int64("requested", insufficientCredit.Requested),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &overRepayment):
		logger.Warn("over-repayment",
			zap.Int64("outstanding", overRepayment.Outstanding),
			zap.Int64("requested", overRepayment.Requested),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
