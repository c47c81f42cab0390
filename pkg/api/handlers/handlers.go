package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cbodonnell/minegrid/pkg/api/middleware"
	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/repositories"
	"github.com/gorilla/mux"
)

// ParticipantIDQueryParam selects whose games the history endpoint lists
const ParticipantIDQueryParam = "participantId"

func HandleGetGame(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["roomId"]
		session, err := repository.LoadSession(r.Context(), roomID)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Game not found", http.StatusNotFound)
				return
			}
			log.Error("failed to load game %s: %v", roomID, err)
			http.Error(w, "Failed to load game", http.StatusInternalServerError)
			return
		}
		writeJSON(w, session)
	}
}

// HandleListHistory lists the unfinished games of a participant. A verified caller may
// only list their own games.
func HandleListHistory(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participantID := r.URL.Query().Get(ParticipantIDQueryParam)
		if uid, ok := middleware.UserID(r.Context()); ok {
			if participantID != "" && participantID != uid {
				http.Error(w, "Cannot list games of another participant", http.StatusForbidden)
				return
			}
			participantID = uid
		}
		if participantID == "" {
			http.Error(w, "participantId is required", http.StatusBadRequest)
			return
		}

		games, err := repository.ListActiveGames(r.Context(), participantID, repositories.HistoryLimit)
		if err != nil {
			log.Error("failed to list games of %s: %v", participantID, err)
			http.Error(w, "Failed to list games", http.StatusInternalServerError)
			return
		}
		writeJSON(w, games)
	}
}

func HandleListImages(c catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shapes, err := c.ListDefenderShapes(r.Context())
		if err != nil {
			log.Error("failed to list images: %v", err)
			http.Error(w, "Failed to list images", http.StatusInternalServerError)
			return
		}
		writeJSON(w, shapes)
	}
}

func HandleGetConfig(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		config, err := repository.GetGameConfig(r.Context())
		if err != nil {
			log.Error("failed to get game config: %v", err)
			http.Error(w, "Failed to get game config", http.StatusInternalServerError)
			return
		}
		writeJSON(w, config)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}
