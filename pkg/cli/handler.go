package cli

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/grodin-io/freq/pkg/model"
	"github.com/grodin-io/freq/pkg/service"
)

var validate = validator.New()

type scoreRequest struct {
	Evidence map[string]string `json:"evidence" validate:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func healthHandler(scorer *service.Scorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := scorer.Ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "model not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func schemaHandler(scorer *service.Scorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, scorer.Schema())
	}
}

func scoreAPIHandler(scorer *service.Scorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if err := validate.Struct(req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		result, err := scorer.Score(req.Evidence)
		if err != nil {
			// Evidence errors are the caller's fault; everything else is a
			// server-side failure.
			if errors.Is(err, model.ErrInvalidEvidence) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			slog.Error("scoring failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
