package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS transaction_records (
	id VARCHAR(64) PRIMARY KEY,
	user_address VARCHAR(64) NOT NULL,
	command JSON NOT NULL,
	chosen_adapter VARCHAR(64) NOT NULL,
	status VARCHAR(32) NOT NULL,
	quote JSON NULL,
	signature_payload JSON NULL,
	signature TEXT NULL,
	settlement_reference JSON NULL,
	failure_reason TEXT NULL,
	retry_count INT NOT NULL DEFAULT 0,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	INDEX idx_status (status),
	INDEX idx_user (user_address)
)`

// MySQLStore persists transaction records in MySQL. Status transitions
// are compare-and-set on the previous status so concurrent writers
// cannot race a record out of its lifecycle.
type MySQLStore struct {
	db *sql.DB
}

var _ Store = (*MySQLStore)(nil)

// NewMySQLStore opens the database and ensures the schema exists
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// Create inserts a new record
func (s *MySQLStore) Create(ctx context.Context, record *models.TransactionRecord) error {
	command, quote, payload, reference, err := marshalColumns(record)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transaction_records
			(id, user_address, command, chosen_adapter, status, quote,
			 signature_payload, signature, settlement_reference,
			 failure_reason, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserAddress, command, record.ChosenAdapter,
		string(record.Status), quote, payload,
		base64.StdEncoding.EncodeToString(record.Signature), reference,
		record.FailureReason, record.RetryCount,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Get returns the record with the given ID
func (s *MySQLStore) Get(ctx context.Context, id string) (*models.TransactionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_address, command, chosen_adapter, status, quote,
		       signature_payload, signature, settlement_reference,
		       failure_reason, retry_count, created_at, updated_at
		FROM transaction_records WHERE id = ?`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return record, err
}

// Update persists the record guarded by the status the caller read
func (s *MySQLStore) Update(ctx context.Context, record *models.TransactionRecord, from models.Status) error {
	if err := checkTransition(from, record.Status); err != nil {
		return err
	}

	command, quote, payload, reference, err := marshalColumns(record)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE transaction_records SET
			command = ?, chosen_adapter = ?, status = ?, quote = ?,
			signature_payload = ?, signature = ?, settlement_reference = ?,
			failure_reason = ?, retry_count = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		command, record.ChosenAdapter, string(record.Status), quote,
		payload, base64.StdEncoding.EncodeToString(record.Signature),
		reference, record.FailureReason, record.RetryCount, now,
		record.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, record.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}

	record.UpdatedAt = now
	return nil
}

// ListByStatus returns every record currently in the given status
func (s *MySQLStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.TransactionRecord, error) {
	return s.list(ctx, `
		SELECT id, user_address, command, chosen_adapter, status, quote,
		       signature_payload, signature, settlement_reference,
		       failure_reason, retry_count, created_at, updated_at
		FROM transaction_records WHERE status = ?`, string(status))
}

// ListByUser returns every record created for the given user address
func (s *MySQLStore) ListByUser(ctx context.Context, userAddress string) ([]*models.TransactionRecord, error) {
	return s.list(ctx, `
		SELECT id, user_address, command, chosen_adapter, status, quote,
		       signature_payload, signature, settlement_reference,
		       failure_reason, retry_count, created_at, updated_at
		FROM transaction_records WHERE user_address = ?`, userAddress)
}

func (s *MySQLStore) list(ctx context.Context, query string, arg interface{}) ([]*models.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []*models.TransactionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Close closes the underlying database
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*models.TransactionRecord, error) {
	var (
		record    models.TransactionRecord
		status    string
		command   []byte
		quote     sql.NullString
		payload   sql.NullString
		signature sql.NullString
		reference sql.NullString
		reason    sql.NullString
	)

	err := row.Scan(
		&record.ID, &record.UserAddress, &command, &record.ChosenAdapter,
		&status, &quote, &payload, &signature, &reference, &reason,
		&record.RetryCount, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = models.Status(status)
	record.FailureReason = reason.String

	if err := json.Unmarshal(command, &record.Command); err != nil {
		return nil, fmt.Errorf("failed to decode command: %w", err)
	}
	if quote.Valid && quote.String != "" && quote.String != "null" {
		record.Quote = &models.Quote{}
		if err := json.Unmarshal([]byte(quote.String), record.Quote); err != nil {
			return nil, fmt.Errorf("failed to decode quote: %w", err)
		}
	}
	if payload.Valid && payload.String != "" && payload.String != "null" {
		record.SignaturePayload = &models.UnsignedPayload{}
		if err := json.Unmarshal([]byte(payload.String), record.SignaturePayload); err != nil {
			return nil, fmt.Errorf("failed to decode signature payload: %w", err)
		}
	}
	if reference.Valid && reference.String != "" && reference.String != "null" {
		record.SettlementReference = &models.SettlementReference{}
		if err := json.Unmarshal([]byte(reference.String), record.SettlementReference); err != nil {
			return nil, fmt.Errorf("failed to decode settlement reference: %w", err)
		}
	}
	if signature.Valid && signature.String != "" {
		sig, err := base64.StdEncoding.DecodeString(signature.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decode signature: %w", err)
		}
		record.Signature = sig
	}

	return &record, nil
}

func marshalColumns(record *models.TransactionRecord) (command []byte, quote, payload, reference interface{}, err error) {
	command, err = json.Marshal(record.Command)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to encode command: %w", err)
	}
	if record.Quote != nil {
		encoded, err := json.Marshal(record.Quote)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to encode quote: %w", err)
		}
		quote = string(encoded)
	}
	if record.SignaturePayload != nil {
		encoded, err := json.Marshal(record.SignaturePayload)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to encode signature payload: %w", err)
		}
		payload = string(encoded)
	}
	if record.SettlementReference != nil {
		encoded, err := json.Marshal(record.SettlementReference)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to encode settlement reference: %w", err)
		}
		reference = string(encoded)
	}
	return command, quote, payload, reference, nil
}

// isDuplicateKey detects MySQL duplicate key errors (error 1062)
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
