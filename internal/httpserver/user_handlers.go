package httpserver

import (
	"net/http"
	"sort"

	"go.uber.org/zap"

	"couplechat/internal/service"
	"couplechat/internal/ws"
)

// @Summary      List contacts
// @Description  Every other user with display name, avatar and last message preview
// @Tags         contacts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   service.Contact
// @Failure      401  {object}  map[string]string
// @Router       /contacts [get]
func handleListContacts(contacts *service.ContactService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := contacts.List(r.Context(), CurrentUserID(r))
		if err != nil {
			writeServiceError(w, log, err, "failed to fetch contacts")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// handleListOnlineUsers reports the users with a live connection on this
// instance.
//
// @Summary      List online users
// @Tags         contacts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string][]string
// @Router       /online [get]
func handleListOnlineUsers(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := hub.Snapshot()
		users := make([]string, 0, len(snapshot))
		for id := range snapshot {
			users = append(users, id)
		}
		sort.Strings(users)
		writeJSON(w, http.StatusOK, map[string][]string{"users": users})
	}
}
