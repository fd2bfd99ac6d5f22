// Package store persists transaction records. Records are append-mutate
// only: they are created once, updated through guarded status
// transitions, and never deleted.
package store

import (
	"context"
	"errors"

	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

var (
	// ErrNotFound means no record exists with the given ID
	ErrNotFound = errors.New("transaction record not found")
	// ErrDuplicateID means a record with the ID already exists
	ErrDuplicateID = errors.New("transaction record already exists")
	// ErrConflict means the record changed underneath the caller. The
	// caller should re-read and decide again.
	ErrConflict = errors.New("transaction record was modified concurrently")
	// ErrInvalidTransition means the requested status change is not
	// permitted by the lifecycle
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the persistence interface for transaction records
type Store interface {
	// Create inserts a new record
	Create(ctx context.Context, record *models.TransactionRecord) error

	// Get returns the record with the given ID
	Get(ctx context.Context, id string) (*models.TransactionRecord, error)

	// Update persists the record, guarded by the status the caller read.
	// The write only applies if the stored status still equals from and
	// the transition from -> record.Status is legal; otherwise it fails
	// with ErrConflict or ErrInvalidTransition.
	Update(ctx context.Context, record *models.TransactionRecord, from models.Status) error

	// ListByStatus returns every record currently in the given status
	ListByStatus(ctx context.Context, status models.Status) ([]*models.TransactionRecord, error)

	// ListByUser returns every record created for the given user address
	ListByUser(ctx context.Context, userAddress string) ([]*models.TransactionRecord, error)

	// Close releases any underlying resources
	Close() error
}

// checkTransition validates a guarded status change. A same-status
// update (refreshing non-status fields) is always allowed.
func checkTransition(from, to models.Status) error {
	if from == to {
		return nil
	}
	if !models.CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}
