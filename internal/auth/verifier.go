package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the authenticated caller resolved from a token.
type Identity struct {
	UserID   int
	Username string
}

// Verifier resolves a bearer token to an identity. Token issuance lives in
// the auth service; this side only verifies.
type Verifier interface {
	Verify(token string) (Identity, error)
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256-signed tokens sharing a secret with the auth
// service.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a JWTVerifier.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning the embedded identity.
func (v *JWTVerifier) Verify(token string) (Identity, error) {
	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	userID, err := strconv.Atoi(parsed.Subject)
	if err != nil || userID == 0 {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, Username: parsed.Username}, nil
}

// Issue signs a token for an identity. Used by tests and local tooling; the
// production issuer is the auth service.
func (v *JWTVerifier) Issue(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(identity.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}
