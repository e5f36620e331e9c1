package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"media-library/internal/library"
	"media-library/internal/logging"
)

// RefreshResponse reports the result of an item refresh.
type RefreshResponse struct {
	ItemID  uuid.UUID `json:"itemId"`
	Changed bool      `json:"changed"`
	Updates string    `json:"updates"`
}

// RefreshLibrary queues a full rescan of every library.
func (h *Handlers) RefreshLibrary(w http.ResponseWriter, _ *http.Request) {
	h.scanner.QueueFullRescan()
	respondStatus(w, http.StatusAccepted, "queued")
}

// RefreshItem runs the metadata providers for one item. ?force=true
// ignores freshness records.
func (h *Handlers) RefreshItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		force, err = strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid force parameter")
			return
		}
	}

	outcome, err := h.scanner.RefreshItem(r.Context(), id, force)
	switch {
	case errors.Is(err, library.ErrNotFound):
		respondError(w, http.StatusNotFound, "item not found")
		return
	case err != nil:
		logging.Error("refresh of item %s failed: %v", id, err)
		respondError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	respond(w, http.StatusOK, RefreshResponse{ItemID: id, Changed: outcome.Changed, Updates: outcome.Type.String()})
}

// RunningProviders lists provider refreshes currently in flight.
func (h *Handlers) RunningProviders(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, h.running.Running())
}

// WatchedPaths lists the paths under realtime monitoring and their state.
func (h *Handlers) WatchedPaths(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, h.watches.Paths())
}

// ReloadConfig re-reads the configuration file. Subscribers are notified
// only when the new file is valid.
func (h *Handlers) ReloadConfig(w http.ResponseWriter, _ *http.Request) {
	if err := h.reloader.Reload(); err != nil {
		logging.Warn("configuration reload rejected: %v", err)
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondStatus(w, http.StatusOK, "reloaded")
}
