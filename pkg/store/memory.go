package store

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments. Records are cloned on the way in and out so callers can
// never mutate stored state without going through Update.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.TransactionRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.TransactionRecord),
	}
}

// Create inserts a new record
func (s *MemoryStore) Create(_ context.Context, record *models.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return ErrDuplicateID
	}
	s.records[record.ID] = cloneRecord(record)
	return nil
}

// Get returns the record with the given ID
func (s *MemoryStore) Get(_ context.Context, id string) (*models.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(record), nil
}

// Update persists the record guarded by the status the caller read
func (s *MemoryStore) Update(_ context.Context, record *models.TransactionRecord, from models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[record.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != from {
		return ErrConflict
	}
	if err := checkTransition(from, record.Status); err != nil {
		return err
	}

	clone := cloneRecord(record)
	clone.UpdatedAt = time.Now()
	s.records[record.ID] = clone
	record.UpdatedAt = clone.UpdatedAt
	return nil
}

// ListByStatus returns every record currently in the given status
func (s *MemoryStore) ListByStatus(_ context.Context, status models.Status) ([]*models.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TransactionRecord
	for _, record := range s.records {
		if record.Status == status {
			out = append(out, cloneRecord(record))
		}
	}
	return out, nil
}

// ListByUser returns every record created for the given user address
func (s *MemoryStore) ListByUser(_ context.Context, userAddress string) ([]*models.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TransactionRecord
	for _, record := range s.records {
		if record.UserAddress == userAddress {
			out = append(out, cloneRecord(record))
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error { return nil }

// cloneRecord deep-copies a record so stored state stays isolated
func cloneRecord(record *models.TransactionRecord) *models.TransactionRecord {
	clone := *record

	clone.Command = record.Command
	if record.Command.AmountAtomic != nil {
		clone.Command.AmountAtomic = new(big.Int).Set(record.Command.AmountAtomic)
	}

	if record.Quote != nil {
		quote := *record.Quote
		if record.Quote.ExpectedOutput != nil {
			quote.ExpectedOutput = new(big.Int).Set(record.Quote.ExpectedOutput)
		}
		if record.Quote.EstimatedFee != nil {
			quote.EstimatedFee = new(big.Int).Set(record.Quote.EstimatedFee)
		}
		clone.Quote = &quote
	}

	if record.SignaturePayload != nil {
		payload := *record.SignaturePayload
		if record.SignaturePayload.Value != nil {
			payload.Value = new(big.Int).Set(record.SignaturePayload.Value)
		}
		payload.Data = append([]byte(nil), record.SignaturePayload.Data...)
		payload.TypedData = append([]byte(nil), record.SignaturePayload.TypedData...)
		payload.SigningHash = append([]byte(nil), record.SignaturePayload.SigningHash...)
		clone.SignaturePayload = &payload
	}

	clone.Signature = append([]byte(nil), record.Signature...)

	if record.SettlementReference != nil {
		ref := *record.SettlementReference
		clone.SettlementReference = &ref
	}

	return &clone
}
