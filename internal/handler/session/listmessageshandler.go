package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adjutanthq/adjutant/internal/db"
	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/session"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
)

// List the messages in one session
func ListMessagesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := session.NewSessionLogic(r.Context(), svcCtx)
		resp, err := l.Messages(middleware.UserID(r.Context()), chi.URLParam(r, "sessionID"))
		switch {
		case err == nil:
			httputil.OkJSON(w, resp)
		case errors.Is(err, db.ErrSessionNotFound):
			httputil.Error(w, http.StatusNotFound, "Session not found")
		default:
			l.Errorf("list messages: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to list messages")
		}
	}
}
