package chat

import (
	"errors"
	"net/http"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/db"
	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/chat"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/types"
)

// Send a message through the assistant (creates a session if needed)
func SendMessageHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ChatRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		l := chat.NewSendMessageLogic(r.Context(), svcCtx)
		resp, err := l.SendMessage(middleware.UserID(r.Context()), &req)
		switch {
		case err == nil:
			httputil.OkJSON(w, resp)
		case errors.Is(err, chat.ErrEmptyMessage):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, db.ErrSessionNotFound):
			httputil.Error(w, http.StatusNotFound, "Session not found")
		case errors.Is(err, ai.ErrNotConfigured):
			httputil.Error(w, http.StatusServiceUnavailable, err.Error())
		default:
			l.Errorf("chat failed: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to process chat message")
		}
	}
}
