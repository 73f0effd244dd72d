package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages, gated by the routing policy
	RouteHome       = "/"
	RouteAuth       = "/auth"
	RouteDashboard  = "/dashboard"
	RouteAdmin      = "/admin"
	RouteAdminLogin = "/admin-login"
	RoutePayment    = "/payment/{id}"

	// Auth Routes
	RouteAuthSignIn   = "/auth/signin"
	RouteAuthSignUp   = "/auth/signup"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthOAuth    = "/auth/oauth/{provider}"
	RouteAuthCallback = "/auth/callback"

	// API Routes, owner scoped
	RouteAPIView            = "/api/view"
	RouteAPICampaigns       = "/api/campaigns"
	RouteAPICampaign        = "/api/campaigns/{id}"
	RouteAPICampaignPause   = "/api/campaigns/{id}/pause"
	RouteAPICampaignResume  = "/api/campaigns/{id}/resume"
	RouteAPICampaignPayment = "/api/campaigns/{id}/payments"
	RouteAPIPaymentWait     = "/api/campaigns/{id}/payments/wait"
	RouteAPIPaymentConfirm  = "/api/payments/confirm"

	// Delivery system callbacks
	RouteInternalViews    = "/internal/campaigns/{id}/views"
	RouteInternalComplete = "/internal/campaigns/{id}/complete"

	// Ops
	RouteMetrics = "/metrics"
	RouteHealthz = "/healthz"
)

const (
	visitorCookieName = "swishview_visitor"
	deliveryKeyHeader = "X-Delivery-Key"
)
