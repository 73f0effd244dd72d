package server

import (
	"net/http"

	"github.com/jrsteele09/swishview/internal/metrics"
)

func (s *Server) initRoutes() {
	// Pages
	s.RegisterRouteFunc("GET "+RouteHome+"{$}", ChainMiddleware(s.pageHandler, s.PageMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuth, ChainMiddleware(s.pageHandler, s.PageMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteDashboard, ChainMiddleware(s.pageHandler, s.PageMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAdmin, ChainMiddleware(s.adminPageHandler, s.PageMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAdminLogin, ChainMiddleware(s.pageHandler, s.PageMiddleware()...))
	s.RegisterRouteFunc("GET "+RoutePayment, ChainMiddleware(s.paymentPageHandler, s.PageMiddleware()...))

	// Auth
	s.RegisterRouteFunc("POST "+RouteAuthSignIn, ChainMiddleware(s.signInHandler, s.APIMiddleware(s.limiter.Middleware)...))
	s.RegisterRouteFunc("POST "+RouteAuthSignUp, ChainMiddleware(s.signUpHandler, s.APIMiddleware(s.limiter.Middleware)...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.logoutHandler, s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthOAuth, ChainMiddleware(s.oauthStartHandler, s.PageMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthCallback, ChainMiddleware(s.oauthCallbackHandler, s.PageMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAdminLogin, ChainMiddleware(s.adminLoginHandler, s.APIMiddleware(s.limiter.Middleware)...))

	// Campaigns, scoped to the signed-in owner
	s.RegisterRouteFunc("GET "+RouteAPIView, ChainMiddleware(s.viewHandler, s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAPICampaigns, ChainMiddleware(s.listCampaignsHandler, s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteFunc("POST "+RouteAPICampaigns, ChainMiddleware(s.createCampaignHandler, s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteFunc("PATCH "+RouteAPICampaign, ChainMiddleware(s.editCampaignHandler, s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteFunc("POST "+RouteAPICampaignPause, ChainMiddleware(s.pauseCampaignHandler, s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteFunc("POST "+RouteAPICampaignResume, ChainMiddleware(s.resumeCampaignHandler, s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteFunc("POST "+RouteAPICampaignPayment, ChainMiddleware(s.initiatePaymentHandler, s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteFunc("GET "+RouteAPIPaymentWait, ChainMiddleware(s.awaitPaymentHandler, s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteFunc("OPTIONS /api/", ChainMiddleware(noContent, s.CorsMiddleware))
	s.RegisterRouteFunc("OPTIONS /auth/", ChainMiddleware(noContent, s.CorsMiddleware))

	// Callbacks
	s.RegisterRouteFunc("POST "+RouteAPIPaymentConfirm, ChainMiddleware(s.confirmPaymentHandler, s.ServiceMiddleware(s.RequirePaymentKey)...))
	s.RegisterRouteFunc("POST "+RouteInternalViews, ChainMiddleware(s.recordViewsHandler, s.ServiceMiddleware(s.RequireDeliveryKey)...))
	s.RegisterRouteFunc("POST "+RouteInternalComplete, ChainMiddleware(s.completeCampaignHandler, s.ServiceMiddleware(s.RequireDeliveryKey)...))

	// Ops
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler(s.deps.Gatherer))
	s.RegisterRouteFunc("GET "+RouteHealthz, healthHandler)
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
