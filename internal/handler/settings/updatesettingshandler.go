package settings

import (
	"net/http"

	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/settings"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/types"
)

// Update assistant name, personality, or timezone
func UpdateSettingsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UpdateSettingsRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		l := settings.NewSettingsLogic(r.Context(), svcCtx)
		resp, err := l.Update(middleware.UserID(r.Context()), &req)
		if err != nil {
			l.Errorf("update settings: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}
		httputil.OkJSON(w, resp)
	}
}
