package settings

import (
	"net/http"

	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/settings"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/types"
)

// Remove the stored Fireflies API key
func DeleteFirefliesKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := settings.NewSettingsLogic(r.Context(), svcCtx)
		if err := l.DeleteFirefliesKey(middleware.UserID(r.Context())); err != nil {
			l.Errorf("delete fireflies key: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to remove API key")
			return
		}
		httputil.OkJSON(w, types.StatusResponse{Status: "disconnected"})
	}
}
