package credentials

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is deliberately identical for unknown email and
	// wrong password.
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account temporarily locked")
	ErrAccountInactive       = errors.New("account is not active")
	ErrMembershipInvalid     = errors.New("membership is not valid")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
)

// LockedError reports how long a lockout remains in effect.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RemainingMinutes())
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

func (e *LockedError) RemainingMinutes() int {
	remaining := time.Until(e.Until)
	if remaining <= 0 {
		return 0
	}
	minutes := int(remaining.Minutes())
	if remaining%time.Minute > 0 {
		minutes++
	}
	return minutes
}

// AttemptsError is an invalid-credentials failure that carries the number of
// attempts left before lockout.
type AttemptsError struct {
	Remaining int
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempts remaining", e.Remaining)
}

func (e *AttemptsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}
