package gateway

import "github.com/carefleet/carefleet-client/users"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email      string     `json:"email" validate:"required,email"`
	Password   string     `json:"password" validate:"required,min=8"`
	FirstName  string     `json:"firstName" validate:"required"`
	LastName   string     `json:"lastName" validate:"required"`
	Role       users.Role `json:"role" validate:"required,oneof=HOSPITAL_ADMIN AMBULANCE_DRIVER DOCTOR NURSE"`
	HospitalID string     `json:"hospitalId,omitempty"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenResponse is the success body of login, verify, and refresh
type TokenResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         users.User `json:"user"`
}

// errorBody is the failure body shape shared by all auth endpoints
type errorBody struct {
	Message string `json:"message"`
}
