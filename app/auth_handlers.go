package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/2456Zebra/novahunt-sub001/auth"
)

// Health is a public health check endpoint.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a new account, seeds its free quota, and starts a
// session. New accounts are always on the free plan; upgrades come only
// from verified billing events.
func (s *Server) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := s.users.Create(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		s.log.Error("signup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	if err := s.quotas.Seed(c.Request.Context(), user.ID); err != nil {
		s.log.Error("quota seed failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	cookie, err := s.sessions.StartSession(user.ID, user.Email)
	if err != nil {
		s.log.Error("session issue failed", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}
	http.SetCookie(c.Writer, cookie)

	c.JSON(http.StatusCreated, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"plan":  s.entitlements.Resolve(c.Request.Context(), user.ID),
	})
}

// Signin checks credentials and starts a session.
func (s *Server) Signin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := s.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		s.log.Error("signin failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign in"})
		return
	}

	cookie, err := s.sessions.StartSession(user.ID, user.Email)
	if err != nil {
		s.log.Error("session issue failed", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}
	http.SetCookie(c.Writer, cookie)

	c.JSON(http.StatusOK, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"plan":  s.entitlements.Resolve(c.Request.Context(), user.ID),
	})
}

// Signout clears the session cookie. There is no server-side state to
// destroy, so this always succeeds.
func (s *Server) Signout(c *gin.Context) {
	http.SetCookie(c.Writer, s.sessions.EndSession())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me reports the current session. An invalid or missing credential is a
// normal anonymous response, never an error.
func (s *Server) Me(c *gin.Context) {
	state := s.sessions.Authenticate(c.Request)
	if !state.Authenticated {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user": gin.H{
			"id":    state.User.UserID,
			"email": state.User.Email,
		},
	})
}

// identity returns the verified identity placed in context by the
// RequireUser middleware.
func identity(c *gin.Context) (auth.Identity, bool) {
	return auth.IdentityFromContext(c.Request.Context())
}
