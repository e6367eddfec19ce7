package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"couplechat/internal/protocol"
	"couplechat/internal/service"
)

// handleListMessages returns the conversation with ?contactId= oldest first.
// Fetching the conversation marks everything addressed to the caller read.
//
// @Summary      List conversation
// @Description  Messages exchanged with a contact, oldest first. Marks the caller's unread messages read.
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        contactId  query     string  true  "Contact user id"
// @Success      200  {array}   service.MessageResponse
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /messages [get]
func handleListMessages(msgSvc *service.MessageService, receipts *service.ReceiptService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := CurrentUserID(r)
		contactID := r.URL.Query().Get("contactId")

		msgs, err := msgSvc.Conversation(r.Context(), userID, contactID)
		if err != nil {
			writeServiceError(w, log, err, "failed to fetch messages")
			return
		}

		if _, err := receipts.MarkAllRead(r.Context(), userID); err != nil {
			log.Warn("bulk mark read failed", zap.String("user_id", userID), zap.Error(err))
		}

		writeJSON(w, http.StatusOK, service.ToResponses(msgs))
	}
}

// handleCreateMessage persists a message without pushing it to the receiver.
//
// @Summary      Send message
// @Description  Persist a message from the caller. No realtime delivery.
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input  body      protocol.SendMessage  true  "Message"
// @Success      201  {object}  service.MessageResponse
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /messages [post]
func handleCreateMessage(msgSvc *service.MessageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.SendMessage
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		msg, err := msgSvc.Create(r.Context(), CurrentUserID(r), req)
		if err != nil {
			writeServiceError(w, log, err, "failed to send message")
			return
		}
		writeJSON(w, http.StatusCreated, service.ToResponse(msg))
	}
}

// @Summary      Mark message read
// @Description  Mark a received message read and notify its sender when online
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        messageID  path      string  true  "Message id"
// @Success      200  {object}  service.MessageResponse
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /messages/{messageID}/read [put]
func handleMarkMessageRead(receipts *service.ReceiptService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := receipts.MarkRead(r.Context(), CurrentUserID(r), chi.URLParam(r, "messageID"))
		if err != nil {
			writeServiceError(w, log, err, "failed to mark message read")
			return
		}
		writeJSON(w, http.StatusOK, service.ToResponse(msg))
	}
}
