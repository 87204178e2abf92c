package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie that carries the session credential.
const SessionCookieName = "nova_session"

// AuthState is the result of authenticating a request. A request with no
// credential, or a credential that fails verification for any reason, is
// simply anonymous.
type AuthState struct {
	Authenticated bool
	User          Identity
}

// Anonymous is the zero auth state.
var Anonymous = AuthState{}

// Sessions resolves request credentials to identities and produces the
// cookie values the transport layer sets on the client. It keeps no
// server-side session state.
type Sessions struct {
	codec  *Codec
	ttl    time.Duration
	secure bool
}

// NewSessions builds the session store. secure controls the cookie's Secure
// attribute and should be true outside local development.
func NewSessions(codec *Codec, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{codec: codec, ttl: ttl, secure: secure}
}

// Authenticate reads the session cookie and verifies it. Verification
// failure is never surfaced to the caller; it yields Anonymous.
func (s *Sessions) Authenticate(r *http.Request) AuthState {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return Anonymous
	}
	id, err := s.codec.Verify(cookie.Value)
	if err != nil {
		return Anonymous
	}
	return AuthState{Authenticated: true, User: id}
}

// StartSession issues a credential for the user and wraps it in the cookie
// to set on the client.
func (s *Sessions) StartSession(userID, email string) (*http.Cookie, error) {
	credential, err := s.codec.Issue(userID, email, s.ttl)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    credential,
		Path:     "/",
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// EndSession returns the cookie that clears the session on the client.
// Ending a session is purely a client-side instruction.
func (s *Sessions) EndSession() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
