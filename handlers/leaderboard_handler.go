package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/B4OS-Dev/classroom-sync/repositories"
	"github.com/go-chi/chi/v5"
)

type LeaderboardHandler struct {
	leaderboardRepo repositories.LeaderboardRepository
	logger          *slog.Logger
}

func NewLeaderboardHandler(leaderboardRepo repositories.LeaderboardRepository, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardRepo: leaderboardRepo, logger: logger}
}

func (h *LeaderboardHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboardRepo.ListRanked(r.Context(), nil)
	if err != nil {
		serverErrorResponse(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": entries})
}

func (h *LeaderboardHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	entry, err := h.leaderboardRepo.GetByUsername(r.Context(), nil, username)
	if err != nil {
		if errors.Is(err, repositories.ErrLeaderboardEntryNotFound) {
			errorResponse(w, h.logger, http.StatusNotFound, "student not found on leaderboard")
			return
		}
		serverErrorResponse(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
