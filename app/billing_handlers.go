package app

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/2456Zebra/novahunt-sub001/app/models"
)

// CreateCheckoutSession starts a Stripe Checkout Session for the
// authenticated user.
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	user, err := s.users.GetByID(c.Request.Context(), id.UserID)
	if err != nil {
		s.log.Error("checkout user lookup failed", zap.String("user_id", id.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare billing"})
		return
	}

	url, err := s.billing.CheckoutURL(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, ErrBillingNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
			return
		}
		s.log.Error("stripe checkout session failed", zap.String("user_id", id.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreatePortalSession creates a Stripe Customer Portal session for the
// authenticated user.
func (s *Server) CreatePortalSession(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	user, err := s.users.GetByID(c.Request.Context(), id.UserID)
	if err != nil {
		s.log.Error("portal user lookup failed", zap.String("user_id", id.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	url, err := s.billing.PortalURL(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no billing customer for user"})
			return
		}
		if errors.Is(err, ErrBillingNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
			return
		}
		s.log.Error("stripe portal session failed", zap.String("user_id", id.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Subscription reports the current session's plan.
func (s *Server) Subscription(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	plan := s.entitlements.Resolve(c.Request.Context(), id.UserID)
	c.JSON(http.StatusOK, gin.H{
		"isPro": plan == models.PlanPro,
		"plan":  plan,
	})
}

// StripeWebhook receives provider events. The raw body is passed to
// verification unmodified; a bad signature rejects the delivery outright,
// and a storage failure after verification answers 500 so the provider
// redelivers.
func (s *Server) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		s.log.Warn("stripe webhook read failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	err = s.webhooks.Handle(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, ErrBadSignature):
			s.log.Warn("stripe webhook signature failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		case errors.Is(err, ErrMalformedEvent):
			s.log.Warn("stripe webhook payload invalid", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		default:
			s.log.Error("stripe webhook apply failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply event"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
