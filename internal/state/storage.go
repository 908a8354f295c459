// Package state guards user status changes.
package state

import "context"

// Storage defines the persistence contract for user status.
type Storage interface {
	// GetStatus returns the current status of the user.
	GetStatus(ctx context.Context, userID int64) (State, error)
	// CompareAndSetStatus moves the user from one status to another and reports
	// whether this call performed the change. It must be atomic.
	CompareAndSetStatus(ctx context.Context, userID int64, from, to State) (bool, error)
}
