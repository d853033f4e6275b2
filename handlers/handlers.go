// Package handlers holds the serve-mode JSON endpoints. Serve mode is a
// read-only view over the synchronized data; it never triggers remote
// calls.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/mswiatek/filmweb-backup/lib/store"
	"github.com/mswiatek/filmweb-backup/lib/validation"
)

// HandleStats reports row counts and the last completed sync.
func HandleStats(s *store.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.CollectStats(r.Context())
		if err != nil {
			logger.Error("Failed to collect stats", slog.Any("error", err))
			validation.WriteError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats, logger)
	}
}

// HandleRatings lists stored ratings, paginated via ?page= and ?size=.
func HandleRatings(s *store.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := intParam(r, "page", 1)
		size := intParam(r, "size", 50)
		if err := validation.ValidatePagination(page, size); err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		ratings, err := s.ListRatings(r.Context(), page, size)
		if err != nil {
			logger.Error("Failed to list ratings", slog.Any("error", err))
			validation.WriteError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, ratings, logger)
	}
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}

func writeJSON(w http.ResponseWriter, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", slog.Any("error", err))
	}
}
