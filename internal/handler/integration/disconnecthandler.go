package integration

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/integration"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/types"
)

// Disconnect a provider and drop its stored credential
func DisconnectHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := integration.NewIntegrationLogic(r.Context(), svcCtx)
		err := l.Disconnect(middleware.UserID(r.Context()), chi.URLParam(r, "provider"))
		switch {
		case err == nil:
			httputil.OkJSON(w, types.StatusResponse{Status: "disconnected"})
		case errors.Is(err, integration.ErrUnknownProvider):
			httputil.Error(w, http.StatusNotFound, "Unknown provider")
		default:
			l.Errorf("disconnect: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to disconnect")
		}
	}
}
