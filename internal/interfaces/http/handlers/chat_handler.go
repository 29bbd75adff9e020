package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/chat"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/middleware"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// Dispatcher answers chat messages.
type Dispatcher interface {
	Handle(ctx context.Context, msg chat.Message) []string
}

// ChatHandler exposes the chat dispatcher over HTTP so any chat platform
// adapter can relay messages to it.
type ChatHandler struct {
	dispatcher Dispatcher
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(d Dispatcher) *ChatHandler {
	return &ChatHandler{dispatcher: d}
}

// ChatResponse is the body of POST /api/v1/chat/messages.
type ChatResponse struct {
	Replies []string `json:"replies"`
}

// PostMessage handles POST /api/v1/chat/messages. With auth enabled the
// user id defaults to the token subject and may not name anyone else.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var msg chat.Message
	if err := decodeJSON(w, r, &msg, false); err != nil {
		writeAppError(w, err)
		return
	}
	msg.UserID = strings.TrimSpace(msg.UserID)
	if msg.UserID == "" {
		msg.UserID = middleware.ContextGetUserID(r.Context())
	}
	if msg.UserID == "" {
		writeAppError(w, errors.Validation("user_id is required"))
		return
	}
	if err := authorizeUser(r, msg.UserID); err != nil {
		writeAppError(w, err)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		writeAppError(w, errors.Validation("text is required"))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Replies: h.dispatcher.Handle(r.Context(), msg)})
}
