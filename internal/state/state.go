package state

import "github.com/Proton-105/ruz-auth/internal/domain"

// State is a user account status.
type State = domain.UserStatus

const (
	// StatePending is the status of a registered user that has not confirmed the phone yet.
	StatePending State = domain.UserStatusPending
	// StateActive is the status of a user that passed OTP verification.
	StateActive State = domain.UserStatusActive
)
