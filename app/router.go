package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2456Zebra/novahunt-sub001/auth"
)

// NewRouter builds the HTTP router: public pages and auth endpoints, the
// webhook, and the session-guarded API.
func NewRouter(s *Server) *gin.Engine {
	router := gin.Default()

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if s.cfg.Stripe.FrontendURL != "" {
		corsCfg.AllowOrigins = []string{s.cfg.Stripe.FrontendURL}
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowOrigins = []string{"*"}
	}
	router.Use(cors.New(corsCfg))

	router.GET("/health", s.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/api/stripe/webhook", s.StripeWebhook)

	// Session endpoints: all public. Me answers anonymously rather than
	// erroring, so it takes no middleware.
	router.POST("/api/auth/signup", s.Signup)
	router.POST("/api/auth/signin", s.Signin)
	router.POST("/api/auth/signout", s.Signout)
	router.GET("/api/auth/me", s.Me)

	// Pages go through the redirect guard.
	pages := router.Group("/", auth.Guard(s.sessions))
	s.RegisterPages(pages)

	protected := router.Group("/api")
	protected.Use(auth.RequireUser(s.sessions))
	protected.GET("/billing/subscription", s.Subscription)
	protected.POST("/billing/create-checkout-session", s.CreateCheckoutSession)
	protected.POST("/billing/portal-session", s.CreatePortalSession)
	protected.GET("/quota", s.QuotaStatus)
	protected.POST("/contacts/search", s.ContactSearch)
	protected.POST("/contacts/reveal", s.ContactReveal)

	return router
}
