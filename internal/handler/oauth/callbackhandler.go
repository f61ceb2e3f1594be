package oauth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adjutanthq/adjutant/internal/logic/oauth"
	"github.com/adjutanthq/adjutant/internal/svc"
)

// Land the provider redirect and bounce the browser back to Settings.
// This endpoint is unauthenticated; the signed state carries the user.
func CallbackHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		l := oauth.NewOAuthLogic(r.Context(), svcCtx)
		dest := l.Callback(chi.URLParam(r, "provider"),
			q.Get("state"), q.Get("code"), q.Get("error"))
		http.Redirect(w, r, dest, http.StatusFound)
	}
}
