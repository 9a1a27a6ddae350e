// Package common defines shared sentinel errors used across the Veritas
// entitlement layer. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrMalformedRecord  = errors.New("malformed record")
	ErrConflict         = errors.New("concurrent update conflict")

	// Authentication errors.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidToken       = errors.New("invalid session token")

	// Input validation.
	ErrValidation    = errors.New("validation error")
	ErrInputTooShort = errors.New("text is too short for reliable analysis")

	// Entitlement / billing.
	ErrQuotaExceeded       = errors.New("daily analysis quota exceeded")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
)
