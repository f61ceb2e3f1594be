package oauth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/oauth"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
)

// Start an OAuth flow: returns the provider's consent URL
func ConnectHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := oauth.NewOAuthLogic(r.Context(), svcCtx)
		resp, err := l.Connect(middleware.UserID(r.Context()), chi.URLParam(r, "provider"))
		switch {
		case err == nil:
			httputil.OkJSON(w, resp)
		case errors.Is(err, oauth.ErrUnknownProvider):
			httputil.Error(w, http.StatusNotFound, "Unknown provider")
		case errors.Is(err, oauth.ErrNotConfigured):
			httputil.Error(w, http.StatusServiceUnavailable, "Provider is not configured")
		default:
			l.Errorf("connect: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to start OAuth flow")
		}
	}
}
