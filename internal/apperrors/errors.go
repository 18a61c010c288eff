package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email is already in use")
	ErrDuplicatePhone     = errors.New("phone number is already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoleNotFound       = errors.New("role not found")

	ErrInvalidToken = errors.New("invalid token")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session not found or has been revoked")
	ErrSessionExpired  = errors.New("session is expired")
	ErrSessionConflict = errors.New("session with this refresh token already exists")

	// Any I/O failure of the underlying storage. Callers may retry with backoff
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Why a token was rejected
type TokenReason string

const (
	TokenMalformed    TokenReason = "malformed"
	TokenBadSignature TokenReason = "bad-signature"
	TokenExpired      TokenReason = "expired"
	TokenUnsupported  TokenReason = "unsupported"
)

// TokenError is returned by token verification. It matches ErrInvalidToken with errors.Is
type TokenError struct {
	Reason TokenReason
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrInvalidToken, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidToken, e.Reason, e.Err)
}

func (e *TokenError) Is(target error) bool {
	return target == ErrInvalidToken
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// StoreError marks err as a storage failure, keeping the original error in the chain
func StoreError(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
