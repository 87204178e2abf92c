// Package auth issues and verifies signed session credentials and enforces
// route access policy for page and API requests.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. Callers treat every one of them as an anonymous
// session rather than an error condition.
var (
	ErrMalformed        = errors.New("malformed credential")
	ErrInvalidSignature = errors.New("invalid credential signature")
	ErrExpired          = errors.New("credential expired")
)

// Identity is the subject a verified credential resolves to.
type Identity struct {
	UserID string
	Email  string
}

// Codec signs and verifies compact session credentials. It holds no shared
// state: verification depends only on the signing secret and the clock.
type Codec struct {
	secret []byte
	parser *jwt.Parser
	now    func() time.Time
}

// NewCodec builds a codec around the process-wide signing secret. Only HS256
// credentials verify; a credential claiming any other algorithm is rejected
// before its signature is checked.
func NewCodec(secret []byte) *Codec {
	c := &Codec{
		secret: secret,
		now:    time.Now,
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue produces a signed credential binding the user id and email, valid
// for ttl from now.
func (c *Codec) Issue(userID, email string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("missing user id")
	}
	now := c.now()
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates a credential, returning the identity it binds.
func (c *Codec) Verify(credential string) (Identity, error) {
	var claims sessionClaims
	token, err := c.parser.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Identity{}, ErrMalformed
		default:
			return Identity{}, ErrInvalidSignature
		}
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, ErrMalformed
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
