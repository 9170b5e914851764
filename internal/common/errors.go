// Package common defines shared constants and sentinel errors used across
// the vault engine and its transports. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrAccountNotFound = errors.New("account not found")

	// Service-level errors.
	ErrorInternal    = errors.New("internal error")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation error")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrTooDeep       = errors.New("folder tree too deep")

	// Time-boxed resources (file ttl, link ttl).
	ErrExpired = errors.New("expired")

	// Capability links.
	ErrInvalidToken = errors.New("invalid token")

	// Envelope and payload integrity. Never retried, never reported as not found.
	ErrIntegrity = errors.New("integrity check failed")
	ErrFormat    = errors.New("malformed envelope")
)

// UserMessage renders err as text a chat or HTTP transport can show to a user.
// Integrity failures keep their own message so tampering is not hidden.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIntegrity), errors.Is(err, ErrFormat):
		return "File failed its integrity check and may be corrupted or tampered with."
	case errors.Is(err, ErrQuotaExceeded):
		return "Storage quota exceeded."
	case errors.Is(err, ErrConflict):
		return "A folder with this name already exists or the move would create a cycle."
	case errors.Is(err, ErrExpired):
		return "This file or link has expired."
	case errors.Is(err, ErrInvalidToken):
		return "Invalid or already used link."
	case errors.Is(err, ErrAccountNotFound):
		return "Account not found."
	case errors.Is(err, ErrorNotFound):
		return "Not found."
	case errors.Is(err, ErrTooDeep):
		return "Folder tree is too deep to display."
	case errors.Is(err, ErrValidation):
		return "Invalid input."
	default:
		return "Something went wrong, please try again later."
	}
}
