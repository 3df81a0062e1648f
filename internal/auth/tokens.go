package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/neexbeast/destinasi/internal/destination"
)

// accessClaims is the JWT payload of an access token. Subject carries the
// user id and ID carries the session id.
type accessClaims struct {
	Email string           `json:"email"`
	Role  destination.Role `json:"role"`
	jwt.RegisteredClaims
}

func (p *Provider) signAccessToken(sessionID string, u sessionRecord) (string, time.Time, error) {
	now := p.now()
	exp := now.Add(p.accessTTL)

	claims := accessClaims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   u.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, exp, nil
}

// parseAccessToken verifies the signature of raw. When checkExpiry is false
// an expired token is still accepted, which sign-out relies on.
func (p *Provider) parseAccessToken(raw string, checkExpiry bool) (*accessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if !checkExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var claims accessClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !tok.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return &claims, nil
}

// newRefreshToken returns a random 64 character hex string.
func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// hashRefreshToken is what gets stored; the raw token never reaches Redis.
func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
