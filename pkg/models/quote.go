package models

import (
	"encoding/json"
	"math/big"
	"time"
)

// Quote is a priced, time-bounded execution plan returned by an adapter
type Quote struct {
	Adapter        string    `json:"adapter"`
	ExpectedOutput *big.Int  `json:"expected_output"`
	EstimatedFee   *big.Int  `json:"estimated_fee"`
	PriceImpact    float64   `json:"price_impact"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the quote can no longer be executed
func (q *Quote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// PayloadKind discriminates what the user is asked to sign
type PayloadKind string

const (
	// PayloadTransaction is a raw transaction to be signed and broadcast
	PayloadTransaction PayloadKind = "transaction"
	// PayloadTypedData is a structured message signed off-chain (EIP-712)
	PayloadTypedData PayloadKind = "typed_data"
)

// UnsignedPayload is whatever the external venue needs signed.
// SigningHash is the digest the signature must cover; Authorizer is the
// address expected to produce that signature.
type UnsignedPayload struct {
	Kind        PayloadKind     `json:"kind"`
	ChainID     int             `json:"chain_id"`
	To          string          `json:"to,omitempty"`
	Value       *big.Int        `json:"value,omitempty"`
	Data        []byte          `json:"data,omitempty"`
	TypedData   json.RawMessage `json:"typed_data,omitempty"`
	SigningHash []byte          `json:"signing_hash"`
	Authorizer  string          `json:"authorizer"`
}

// SettlementReference identifies a submitted operation at the venue,
// usually an on-chain transaction hash
type SettlementReference struct {
	TxHash  string `json:"tx_hash"`
	ChainID int    `json:"chain_id"`
	VenueID string `json:"venue_id,omitempty"`
}
