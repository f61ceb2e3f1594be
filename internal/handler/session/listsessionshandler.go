package session

import (
	"net/http"

	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/session"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
)

// List the user's chat sessions
func ListSessionsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := session.NewSessionLogic(r.Context(), svcCtx)
		resp, err := l.List(middleware.UserID(r.Context()))
		if err != nil {
			l.Errorf("list sessions: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to list sessions")
			return
		}
		httputil.OkJSON(w, resp)
	}
}
