// Package router drives the intent-to-settlement pipeline: it parses
// user text, selects an execution venue, walks the transaction record
// through its lifecycle, and fails over between venues when one cannot
// serve the command.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/wayfinder-hq/wayfinder-router/pkg/knowledge"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/metrics"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
	"github.com/wayfinder-hq/wayfinder-router/pkg/parser"
	"github.com/wayfinder-hq/wayfinder-router/pkg/registry"
	"github.com/wayfinder-hq/wayfinder-router/pkg/resilience"
	"github.com/wayfinder-hq/wayfinder-router/pkg/store"
)

// ErrNotResumable means the record is not waiting for an authorization
var ErrNotResumable = errors.New("record is not awaiting authorization")

// Router executes parsed commands against the registered venues
type Router struct {
	parser   *parser.Parser
	registry *registry.Registry
	wrapper  *resilience.Wrapper
	store    store.Store
	kb       *knowledge.Base
	logger   logger.Logger
}

// New creates a router
func New(p *parser.Parser, reg *registry.Registry, wrapper *resilience.Wrapper, st store.Store, kb *knowledge.Base, log logger.Logger) *Router {
	return &Router{
		parser:   p,
		registry: reg,
		wrapper:  wrapper,
		store:    st,
		kb:       kb,
		logger:   log,
	}
}

// SubmitCommand parses the text and drives it up to the point where the
// user must sign. Parse problems come back as a clarification request,
// not an error; errors are reserved for infrastructure failures.
func (r *Router) SubmitCommand(ctx context.Context, text, userAddress string) (models.CommandResult, error) {
	cmd, err := r.parser.Parse(ctx, text)
	if err != nil {
		if errors.Is(err, parser.ErrAmbiguousIntent) ||
			errors.Is(err, parser.ErrUnresolvableAsset) ||
			errors.Is(err, parser.ErrPriceResolutionFailed) {
			return models.NeedsClarification(err.Error()), nil
		}
		return models.CommandResult{}, err
	}

	if cmd.Operation == models.OperationQuery {
		return r.answer(cmd), nil
	}

	cmd.Payer = userAddress
	if cmd.Recipient == "" {
		cmd.Recipient = userAddress
	}

	candidates, err := r.registry.Select(cmd)
	if err != nil {
		if errors.Is(err, registry.ErrNoRoute) {
			metrics.FailedCommands.WithLabelValues("no_route").Inc()
			return models.Failed("", err.Error()), nil
		}
		return models.CommandResult{}, err
	}

	now := time.Now()
	record := &models.TransactionRecord{
		ID:          uuid.NewString(),
		UserAddress: userAddress,
		Command:     *cmd,
		Status:      models.StatusPrepared,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.Create(ctx, record); err != nil {
		return models.CommandResult{}, fmt.Errorf("failed to create record: %w", err)
	}
	metrics.RecordsByStatus.WithLabelValues(string(models.StatusPrepared)).Inc()

	var lastErr error
	for _, adapter := range candidates {
		name := adapter.Name()

		quote, err := r.wrapper.Quote(ctx, adapter, cmd)
		if err != nil {
			lastErr = err
			r.recordAttemptFailure(record, cmd, name, "quote", err)
			continue
		}

		payload, err := r.wrapper.Build(ctx, adapter, cmd, quote)
		if err != nil {
			lastErr = err
			r.recordAttemptFailure(record, cmd, name, "build", err)
			continue
		}

		record.ChosenAdapter = name
		record.Quote = quote
		record.SignaturePayload = payload
		if err := r.updateStatus(ctx, record, models.StatusPrepared, models.StatusAwaitingAuthorization); err != nil {
			return models.CommandResult{}, err
		}

		r.logger.InfoWithChain(cmd.SourceChain, "command %s routed to %s after %d failed attempts",
			record.ID, name, record.RetryCount)
		return models.AwaitingAuthorization(record.ID, quote, payload), nil
	}

	record.FailureReason = fmt.Sprintf("all %d candidate venues failed: %v", len(candidates), lastErr)
	if err := r.updateStatus(ctx, record, models.StatusPrepared, models.StatusFailed); err != nil {
		return models.CommandResult{}, err
	}
	metrics.FailedCommands.WithLabelValues("venues_exhausted").Inc()
	r.logger.ErrorWithChain(cmd.SourceChain, "command %s failed: %s", record.ID, record.FailureReason)
	return models.Failed(record.ID, record.FailureReason), nil
}

// recordAttemptFailure counts a failed venue attempt on the record
func (r *Router) recordAttemptFailure(record *models.TransactionRecord, cmd *models.Command, name, stage string, err error) {
	record.RetryCount++
	metrics.Failovers.WithLabelValues(string(cmd.Operation), name).Inc()
	metrics.RetryCount.WithLabelValues(string(cmd.Operation)).Inc()
	r.logger.DebugWithChain(cmd.SourceChain, "%s failed at %s stage: %v", name, stage, err)
}

// ResumeWithSignature attaches the user's signature to a waiting record
// and submits it for settlement. The call is idempotent: resuming a
// record that already moved on returns its current state.
func (r *Router) ResumeWithSignature(ctx context.Context, recordID string, signature []byte) (models.CommandResult, error) {
	record, err := r.store.Get(ctx, recordID)
	if err != nil {
		return models.CommandResult{}, err
	}

	switch record.Status {
	case models.StatusSettled:
		return models.Settled(record.ID, record.SettlementReference), nil
	case models.StatusSubmitted:
		return models.Submitted(record.ID, record.SettlementReference), nil
	case models.StatusFailed, models.StatusExpired:
		return models.Failed(record.ID, record.FailureReason), nil
	case models.StatusAwaitingAuthorization:
		// proceed
	default:
		return models.CommandResult{}, fmt.Errorf("%w: record %s is %s", ErrNotResumable, record.ID, record.Status)
	}

	if record.Quote == nil || record.SignaturePayload == nil {
		return models.CommandResult{}, fmt.Errorf("record %s has no signable payload", record.ID)
	}

	if record.Quote.Expired(time.Now()) {
		record.FailureReason = "quote expired before authorization"
		if err := r.updateStatus(ctx, record, models.StatusAwaitingAuthorization, models.StatusExpired); err != nil {
			return r.resolveConflict(ctx, record.ID, err)
		}
		metrics.ExpiredQuotes.Inc()
		return models.Failed(record.ID, record.FailureReason), nil
	}

	payload := record.SignaturePayload
	if payload.Kind == models.PayloadTypedData {
		if err := verifySignature(payload.SigningHash, signature, payload.Authorizer); err != nil {
			// Bad signature leaves the record waiting; the user can sign again
			return models.CommandResult{}, fmt.Errorf("authorization rejected: %w", err)
		}
	}

	record.Signature = signature
	if err := r.updateStatus(ctx, record, models.StatusAwaitingAuthorization, models.StatusSubmitted); err != nil {
		return r.resolveConflict(ctx, record.ID, err)
	}

	adapter, ok := r.registry.Get(record.ChosenAdapter)
	if !ok {
		record.FailureReason = fmt.Sprintf("venue %s is no longer registered", record.ChosenAdapter)
		if err := r.updateStatus(ctx, record, models.StatusSubmitted, models.StatusFailed); err != nil {
			return models.CommandResult{}, err
		}
		metrics.FailedCommands.WithLabelValues("venue_missing").Inc()
		return models.Failed(record.ID, record.FailureReason), nil
	}

	reference, err := r.wrapper.Submit(ctx, adapter, payload, signature)
	if err != nil {
		if errors.Is(err, resilience.ErrRejected) {
			record.FailureReason = err.Error()
			if uerr := r.updateStatus(ctx, record, models.StatusSubmitted, models.StatusFailed); uerr != nil {
				return models.CommandResult{}, uerr
			}
			metrics.FailedCommands.WithLabelValues("venue_rejected").Inc()
			return models.Failed(record.ID, record.FailureReason), nil
		}

		// The signed payload is venue-specific, so an unavailable venue
		// cannot be failed over without a fresh authorization
		record.FailureReason = "venue unavailable at submission; a new authorization is required"
		if uerr := r.updateStatus(ctx, record, models.StatusSubmitted, models.StatusExpired); uerr != nil {
			return models.CommandResult{}, uerr
		}
		r.logger.ErrorWithChain(payload.ChainID, "submission for %s failed: %v", record.ID, err)
		return models.Failed(record.ID, record.FailureReason), nil
	}

	record.SettlementReference = reference
	if err := r.updateStatus(ctx, record, models.StatusSubmitted, models.StatusSettled); err != nil {
		return models.CommandResult{}, err
	}
	metrics.Settlements.WithLabelValues(strconv.Itoa(reference.ChainID)).Inc()
	metrics.SettlementTime.WithLabelValues(strconv.Itoa(reference.ChainID)).Observe(time.Since(record.CreatedAt).Seconds())
	r.logger.NoticeWithChain(reference.ChainID, "command %s settled: %s", record.ID, reference.TxHash)

	return models.Settled(record.ID, reference), nil
}

// Cancel fails a record before it reaches the venue. Anything at or
// past submission can no longer be cancelled.
func (r *Router) Cancel(ctx context.Context, recordID string) error {
	record, err := r.store.Get(ctx, recordID)
	if err != nil {
		return err
	}

	switch record.Status {
	case models.StatusPrepared, models.StatusAwaitingAuthorization:
		// cancellable
	default:
		return fmt.Errorf("record %s cannot be cancelled in status %s", record.ID, record.Status)
	}

	from := record.Status
	record.FailureReason = "cancelled by user"
	if err := r.updateStatus(ctx, record, from, models.StatusFailed); err != nil {
		return err
	}
	metrics.FailedCommands.WithLabelValues("cancelled").Inc()
	r.logger.Info("command %s cancelled by user", record.ID)
	return nil
}

// GetRecord returns a transaction record by ID
func (r *Router) GetRecord(ctx context.Context, recordID string) (*models.TransactionRecord, error) {
	return r.store.Get(ctx, recordID)
}

// ListRecords returns every record for the given user
func (r *Router) ListRecords(ctx context.Context, userAddress string) ([]*models.TransactionRecord, error) {
	return r.store.ListByUser(ctx, userAddress)
}

// answer serves a query command from the knowledge base
func (r *Router) answer(cmd *models.Command) models.CommandResult {
	entries := r.kb.Query(cmd.RawText)
	if len(entries) == 0 {
		return models.Answer("I don't have an answer for that.")
	}
	var parts []string
	for _, entry := range entries {
		parts = append(parts, entry.Content)
	}
	return models.Answer(strings.Join(parts, "\n"))
}

// updateStatus performs a guarded transition and keeps the status gauge
// in step with the store
func (r *Router) updateStatus(ctx context.Context, record *models.TransactionRecord, from, to models.Status) error {
	record.Status = to
	if err := r.store.Update(ctx, record, from); err != nil {
		record.Status = from
		return err
	}
	metrics.RecordsByStatus.WithLabelValues(string(from)).Dec()
	metrics.RecordsByStatus.WithLabelValues(string(to)).Inc()
	return nil
}

// resolveConflict handles a lost transition race by re-reading the
// record and reporting its current state
func (r *Router) resolveConflict(ctx context.Context, recordID string, cause error) (models.CommandResult, error) {
	if !errors.Is(cause, store.ErrConflict) {
		return models.CommandResult{}, cause
	}

	record, err := r.store.Get(ctx, recordID)
	if err != nil {
		return models.CommandResult{}, err
	}
	switch record.Status {
	case models.StatusSettled:
		return models.Settled(record.ID, record.SettlementReference), nil
	case models.StatusSubmitted:
		return models.Submitted(record.ID, record.SettlementReference), nil
	default:
		return models.Failed(record.ID, record.FailureReason), nil
	}
}

// verifySignature recovers the signer of an off-chain digest and checks
// it against the expected authorizer
func verifySignature(signingHash, signature []byte, authorizer string) error {
	if len(signingHash) != 32 {
		return fmt.Errorf("signing hash must be 32 bytes, got %d", len(signingHash))
	}
	if len(signature) != 65 {
		return fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}

	// Wallets return V as 27/28; recovery wants 0/1
	normalized := make([]byte, 65)
	copy(normalized, signature)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pubKey, err := crypto.SigToPub(signingHash, normalized)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %v", err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	expected := common.HexToAddress(authorizer)
	if !bytes.Equal(recovered.Bytes(), expected.Bytes()) {
		return fmt.Errorf("signature from %s does not match authorizer %s", recovered.Hex(), authorizer)
	}
	return nil
}
