package settings

import (
	"net/http"

	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/settings"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
)

// Get the user's assistant settings
func GetSettingsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := settings.NewSettingsLogic(r.Context(), svcCtx)
		resp, err := l.Get(middleware.UserID(r.Context()))
		if err != nil {
			l.Errorf("get settings: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		httputil.OkJSON(w, resp)
	}
}
