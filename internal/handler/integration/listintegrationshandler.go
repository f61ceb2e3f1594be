package integration

import (
	"net/http"

	"github.com/adjutanthq/adjutant/internal/httputil"
	"github.com/adjutanthq/adjutant/internal/logic/integration"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
)

// List the connection status of every provider
func ListIntegrationsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := integration.NewIntegrationLogic(r.Context(), svcCtx)
		resp, err := l.List(middleware.UserID(r.Context()))
		if err != nil {
			l.Errorf("list integrations: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "Failed to list integrations")
			return
		}
		httputil.OkJSON(w, resp)
	}
}
