package models

import (
	"time"
)

// Status is the lifecycle state of a transaction record
type Status string

const (
	StatusPrepared              Status = "prepared"
	StatusAwaitingAuthorization Status = "awaiting_authorization"
	StatusSubmitted             Status = "submitted"
	StatusSettled               Status = "settled"
	StatusFailed                Status = "failed"
	StatusExpired               Status = "expired"
)

// IsTerminal returns true for statuses a record can never leave
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSettled, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// IsValidStatus checks whether the given status is a supported enum value
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPrepared, StatusAwaitingAuthorization, StatusSubmitted,
		StatusSettled, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one status to another is legal.
// Terminal failure states are reachable from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusFailed, StatusExpired:
		return true
	case StatusAwaitingAuthorization:
		return from == StatusPrepared
	case StatusSubmitted:
		return from == StatusAwaitingAuthorization
	case StatusSettled:
		return from == StatusSubmitted
	default:
		return false
	}
}

// TransactionRecord is the durable record of one execution attempt.
// Created by the router after adapter selection, mutated only by status
// transitions, never deleted.
type TransactionRecord struct {
	ID                  string               `json:"id"`
	UserAddress         string               `json:"user_address"`
	Command             Command              `json:"command"`
	ChosenAdapter       string               `json:"chosen_adapter"`
	Status              Status               `json:"status"`
	Quote               *Quote               `json:"quote,omitempty"`
	SignaturePayload    *UnsignedPayload     `json:"signature_payload,omitempty"`
	Signature           []byte               `json:"signature,omitempty"`
	SettlementReference *SettlementReference `json:"settlement_reference,omitempty"`
	FailureReason       string               `json:"failure_reason,omitempty"`
	RetryCount          int                  `json:"retry_count"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}
