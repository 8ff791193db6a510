package errors

import (
	"errors"
	"fmt"
)

// Common error types for the CareFleet client core
var (
	// Authentication errors, returned to the caller for display
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOtp         = errors.New("invalid otp")

	// Session errors
	ErrSessionExpired = errors.New("session expired")

	// Transport errors
	ErrNetwork = errors.New("network error")

	// Realtime channel errors
	ErrChannelNotConnected = errors.New("channel not connected")
	ErrReconnectExhausted  = errors.New("reconnect attempts exhausted")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
