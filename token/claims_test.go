package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/carefleet/carefleet-client/token"
	"github.com/carefleet/carefleet-client/users"
)

func makeToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestDecodeExtractsClaims(t *testing.T) {
	now := time.Now().Unix()
	raw := makeToken(t, jwtlib.MapClaims{
		"sub":             "user-1",
		"email":           "admin@hospital.com",
		"role":            "HOSPITAL_ADMIN",
		"firstName":       "John",
		"lastName":        "Admin",
		"isEmailVerified": true,
		"iat":             now,
		"exp":             now + 3600,
	})

	claims, err := token.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "admin@hospital.com", claims.Email)
	require.Equal(t, users.RoleHospitalAdmin, claims.Role)
	require.Equal(t, "John", claims.FirstName)
	require.Equal(t, "Admin", claims.LastName)
	require.True(t, claims.EmailVerified)
	require.Equal(t, now, claims.IssuedAt)
	require.Equal(t, now+3600, claims.ExpiresAt)
}

func TestDecodeNeverContactsAnything(t *testing.T) {
	// Signature is not verified: a token signed with an unknown key still
	// decodes, since decoding is advisory display state only
	raw := makeToken(t, jwtlib.MapClaims{
		"sub": "user-2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	claims, err := token.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "user-2", claims.Subject)
}

func TestDecodeRejectsMalformedToken(t *testing.T) {
	_, err := token.Decode("not-a-jwt")
	require.Error(t, err)
}

func TestDecodeRejectsEmptyToken(t *testing.T) {
	_, err := token.Decode("")
	require.Error(t, err)
}

func TestDecodeRequiresExpAndSub(t *testing.T) {
	missingExp := makeToken(t, jwtlib.MapClaims{"sub": "user-1"})
	_, err := token.Decode(missingExp)
	require.Error(t, err)

	missingSub := makeToken(t, jwtlib.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	_, err = token.Decode(missingSub)
	require.Error(t, err)
}

func TestValidAt(t *testing.T) {
	now := time.Now()
	claims := &token.ClaimSet{ExpiresAt: now.Unix() + 60}
	require.True(t, claims.ValidAt(now))
	require.False(t, claims.ValidAt(now.Add(2*time.Minute)))

	// Expiry boundary: a claim set expiring exactly now is invalid
	boundary := &token.ClaimSet{ExpiresAt: now.Unix()}
	require.False(t, boundary.ValidAt(now))
}

func TestClaimSetUser(t *testing.T) {
	claims := &token.ClaimSet{
		Subject:       "user-3",
		Email:         "doctor@hospital.com",
		Role:          users.RoleDoctor,
		FirstName:     "Sarah",
		LastName:      "Doctor",
		EmailVerified: true,
	}
	user := claims.User()
	require.Equal(t, "user-3", user.ID)
	require.Equal(t, users.RoleDoctor, user.Role)
	require.Equal(t, "Sarah Doctor", user.DisplayName())
}
