package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Route access policy. Pages under ProtectedPrefix require a session;
// auth-only pages bounce signed-in users back to the landing page.
const (
	ProtectedPrefix = "/dashboard"
	SignInPath      = "/signin"
	SignUpPath      = "/signup"
	LandingPath     = "/dashboard"
)

// Decision is the outcome of evaluating the route policy for a request.
type Decision struct {
	Allow    bool
	Redirect string
}

// Allowed lets the request through unchanged.
var Allowed = Decision{Allow: true}

// RedirectTo sends the client to target instead of the requested path.
func RedirectTo(target string) Decision {
	return Decision{Redirect: target}
}

// Evaluate applies the route policy to a path and auth state. It is a pure
// function; any I/O happened in Authenticate.
func Evaluate(path string, state AuthState) Decision {
	protected := path == ProtectedPrefix || strings.HasPrefix(path, ProtectedPrefix+"/")
	switch {
	case protected && !state.Authenticated:
		return RedirectTo(SignInPath)
	case (path == SignInPath || path == SignUpPath) && state.Authenticated:
		return RedirectTo(LandingPath)
	default:
		return Allowed
	}
}

// Guard is middleware for page routes. It authenticates the request, stashes
// the identity in the request context, and redirects per the route policy.
func Guard(sessions *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := sessions.Authenticate(c.Request)
		if state.Authenticated {
			c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), state.User))
		}
		if d := Evaluate(c.Request.URL.Path, state); !d.Allow {
			c.Redirect(http.StatusSeeOther, d.Redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireUser is middleware for API routes that need a session. Unlike Guard
// it never redirects; an anonymous request gets a 401 JSON response.
func RequireUser(sessions *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := sessions.Authenticate(c.Request)
		if !state.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), state.User))
		c.Next()
	}
}
