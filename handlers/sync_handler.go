package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/B4OS-Dev/classroom-sync/services"
)

type SyncHandler struct {
	syncService services.SyncService
	logger      *slog.Logger
	running     sync.Mutex
}

func NewSyncHandler(syncService services.SyncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{syncService: syncService, logger: logger}
}

// Trigger runs a full sync. Runs are serialized; a second trigger while
// one is in flight gets 409 instead of queueing.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if !h.running.TryLock() {
		errorResponse(w, h.logger, http.StatusConflict, "a sync run is already in progress")
		return
	}
	defer h.running.Unlock()

	summary, err := h.syncService.RunSync(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrClassroomNotFound) {
			errorResponse(w, h.logger, http.StatusNotFound, err.Error())
			return
		}
		serverErrorResponse(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
