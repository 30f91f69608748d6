package httpapi

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/parley-chat/parley/internal/store"
)

// handleGetMessages returns the full message history, oldest first, as
// {username, message} pairs.
func (a *API) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := a.messages.ListOldestFirst(r.Context())
	if err != nil {
		a.log.Error("message listing failed", "error", err)
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"messages": lo.Map(messages, func(m store.Message, _ int) map[string]string {
			return map[string]string{
				"username": m.Username,
				"message":  m.Content,
			}
		}),
	})
}
