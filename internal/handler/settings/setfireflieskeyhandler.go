package settings

import (
	"errors"
	"net/http"

	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/settings"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/types"
)

// Store a Fireflies API key after verifying it against the API
func SetFirefliesKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.FirefliesKeyRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		l := settings.NewSettingsLogic(r.Context(), svcCtx)
		err := l.SetFirefliesKey(middleware.UserID(r.Context()), req.APIKey)
		switch {
		case err == nil:
			httputil.OkJSON(w, types.StatusResponse{Status: "connected"})
		case errors.Is(err, settings.ErrInvalidAPIKey):
			httputil.Error(w, http.StatusBadRequest, "Invalid Fireflies API key")
		default:
			l.Errorf("set fireflies key: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to save API key")
		}
	}
}
