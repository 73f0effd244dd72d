package errors

import (
	"errors"
	"fmt"
)

// Common error types for SwishView
var (
	// Authentication errors
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrProviderNotAvailable = errors.New("provider not available")
	ErrInvalidState         = errors.New("invalid oauth state")

	// Token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrNoSession       = errors.New("no session")

	// Campaign errors
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrNotOwner          = errors.New("caller is not the campaign owner")
	ErrInvalidTransition = errors.New("transition not allowed")
	ErrEditNotAllowed    = errors.New("campaign can only be edited while pending")
	ErrPaymentMismatch   = errors.New("payment amount does not match budget")
	ErrInvalidField      = errors.New("invalid campaign field")

	// Payment errors
	ErrIntentNotFound = errors.New("payment intent not found")
	ErrPaymentTimeout = errors.New("payment confirmation timed out")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
	ErrAtCapacity  = errors.New("server at capacity")
)

// AuthError reports a failed sign-in, sign-up or provider call. The session is unchanged.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PolicyViolation reports a disallowed status transition or edit. Campaign state is unchanged.
type PolicyViolation struct {
	CampaignID string
	Reason     string
	Err        error
}

func (e *PolicyViolation) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("policy violation on campaign %s: %v", e.CampaignID, e.Err)
	}
	return fmt.Sprintf("policy violation on campaign %s: %s: %v", e.CampaignID, e.Reason, e.Err)
}

func (e *PolicyViolation) Unwrap() error { return e.Err }

// RepositoryError reports a read or write failure against a repository.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// StaleResponse marks a result that arrived after the session that requested it ended.
type StaleResponse struct {
	Epoch   uint64
	Current uint64
}

func (e *StaleResponse) Error() string {
	return fmt.Sprintf("stale response from epoch %d (current %d)", e.Epoch, e.Current)
}

func NewAuthError(op string, err error) error {
	return &AuthError{Op: op, Err: err}
}

func NewPolicyViolation(campaignID, reason string, err error) error {
	return &PolicyViolation{CampaignID: campaignID, Reason: reason, Err: err}
}

func NewRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{Op: op, Err: err}
}

func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

func IsPolicyViolation(err error) bool {
	var target *PolicyViolation
	return errors.As(err, &target)
}

func IsRepositoryError(err error) bool {
	var target *RepositoryError
	return errors.As(err, &target)
}

func IsStale(err error) bool {
	var target *StaleResponse
	return errors.As(err, &target)
}

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
