package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/carefleet/carefleet-client/users"
)

// ClaimSet carries the identity data decoded from an access token.
//
// Decoding is unverified and advisory: it drives immediate UI state only.
// The data service verifies signatures and is the authority for rejecting
// expired or forged tokens.
type ClaimSet struct {
	Subject       string     // Unique user ID ("sub")
	Email         string     // User's email address
	Role          users.Role // Dashboard role
	FirstName     string
	LastName      string
	EmailVerified bool
	IssuedAt      int64 // Unix seconds
	ExpiresAt     int64 // Unix seconds
}

// Decode parses an access token into a ClaimSet without verifying its
// signature and without contacting any service.
func Decode(rawToken string) (*ClaimSet, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("[token.Decode] empty token")
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "[token.Decode] malformed token")
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[token.Decode] error extracting claims")
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	firstName, _ := claims["firstName"].(string)
	lastName, _ := claims["lastName"].(string)
	emailVerified, _ := claims["isEmailVerified"].(bool)
	iat, _ := claims["iat"].(float64)
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, errors.New("[token.Decode] token missing exp claim")
	}
	if sub == "" {
		return nil, errors.New("[token.Decode] token missing sub claim")
	}

	return &ClaimSet{
		Subject:       sub,
		Email:         email,
		Role:          users.Role(role),
		FirstName:     firstName,
		LastName:      lastName,
		EmailVerified: emailVerified,
		IssuedAt:      int64(iat),
		ExpiresAt:     int64(exp),
	}, nil
}

// ValidAt reports whether the claim set has not expired at the given time
func (c *ClaimSet) ValidAt(now time.Time) bool {
	return c.ExpiresAt > now.Unix()
}

// User maps the claim set to the client-side identity
func (c *ClaimSet) User() *users.User {
	return &users.User{
		ID:            c.Subject,
		Email:         c.Email,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Role:          c.Role,
		EmailVerified: c.EmailVerified,
	}
}
