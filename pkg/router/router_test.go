package router

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfinder-hq/wayfinder-router/pkg/adapters"
	"github.com/wayfinder-hq/wayfinder-router/pkg/knowledge"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
	"github.com/wayfinder-hq/wayfinder-router/pkg/parser"
	"github.com/wayfinder-hq/wayfinder-router/pkg/registry"
	"github.com/wayfinder-hq/wayfinder-router/pkg/resilience"
	"github.com/wayfinder-hq/wayfinder-router/pkg/store"
)

// fakeVenue is a scriptable execution venue for router tests
type fakeVenue struct {
	name        string
	capability  models.ProtocolCapability
	quoteErr    error
	buildErr    error
	submitErr   error
	quoteTTL    time.Duration
	quoteCalls  int
	submitCalls int
}

func (v *fakeVenue) Name() string { return v.name }

func (v *fakeVenue) Capability() *models.ProtocolCapability { return &v.capability }

func (v *fakeVenue) Quote(_ context.Context, cmd *models.Command) (*models.Quote, error) {
	v.quoteCalls++
	if v.quoteErr != nil {
		return nil, v.quoteErr
	}
	ttl := v.quoteTTL
	if ttl == 0 {
		ttl = time.Minute
	}
	return &models.Quote{
		Adapter:        v.name,
		ExpectedOutput: new(big.Int).Set(cmd.AmountAtomic),
		EstimatedFee:   big.NewInt(0),
		ExpiresAt:      time.Now().Add(ttl),
	}, nil
}

func (v *fakeVenue) Build(_ context.Context, cmd *models.Command, _ *models.Quote) (*models.UnsignedPayload, error) {
	if v.buildErr != nil {
		return nil, v.buildErr
	}
	return &models.UnsignedPayload{
		Kind:        models.PayloadTypedData,
		ChainID:     cmd.SourceChain,
		To:          cmd.Recipient,
		Value:       new(big.Int).Set(cmd.AmountAtomic),
		SigningHash: crypto.Keccak256([]byte(v.name + "|" + cmd.RawText)),
		Authorizer:  cmd.Payer,
	}, nil
}

func (v *fakeVenue) Submit(_ context.Context, payload *models.UnsignedPayload, _ []byte) (*models.SettlementReference, error) {
	v.submitCalls++
	if v.submitErr != nil {
		return nil, v.submitErr
	}
	return &models.SettlementReference{
		TxHash:  "0x" + v.name,
		ChainID: payload.ChainID,
		VenueID: v.name + "-1",
	}, nil
}

func swapVenue(name string) *fakeVenue {
	return &fakeVenue{name: name, capability: models.ProtocolCapability{
		Name:            name,
		SupportedChains: []int{1},
		SupportedOps:    []models.Operation{models.OperationSwap},
	}}
}

func paymentVenue(name string) *fakeVenue {
	return &fakeVenue{name: name, capability: models.ProtocolCapability{
		Name:            name,
		SupportedChains: []int{25},
		SupportedOps:    []models.Operation{models.OperationPayment},
	}}
}

type stubFeed struct{}

func (stubFeed) Price(context.Context, string) (float64, error) { return 1, nil }

func newTestRouter(t *testing.T, venues ...adapters.Adapter) (*Router, *store.MemoryStore) {
	t.Helper()

	kb := knowledge.NewBase(knowledge.DefaultEntries, 3)
	p := parser.New(stubFeed{}, kb, parser.Config{}, &logger.EmptyLogger{})

	reg := registry.New(nil)
	for _, venue := range venues {
		require.NoError(t, reg.Register(venue))
	}

	wrapper := resilience.NewWrapper(resilience.Settings{
		Breaker: resilience.BreakerSettings{
			FailureThreshold: 100,
			Window:           time.Minute,
			Cooldown:         time.Minute,
			MaxCooldown:      time.Minute,
		},
		RateLimiter:   resilience.RateLimiterSettings{RequestsPerSecond: 1000, Burst: 1000},
		QuoteCacheTTL: time.Minute,
	}, &logger.EmptyLogger{})

	st := store.NewMemoryStore()
	return New(p, reg, wrapper, st, kb, &logger.EmptyLogger{}), st
}

func testKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func signHash(t *testing.T, key *ecdsa.PrivateKey, hash []byte) []byte {
	t.Helper()
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	return sig
}

const paymentText = "pay 1 USDC to 0x3333333333333333333333333333333333333333 on cronos"

func TestSubmitCommandNeedsClarification(t *testing.T) {
	r, _ := newTestRouter(t, swapVenue("dex"))

	result, err := r.SubmitCommand(context.Background(), "purple monkey dishwasher", "0x01")
	require.NoError(t, err)
	assert.Equal(t, models.ResultNeedsClarification, result.Kind)
	assert.NotEmpty(t, result.Message)
}

func TestSubmitCommandAnswersQueries(t *testing.T) {
	r, _ := newTestRouter(t, swapVenue("dex"))

	result, err := r.SubmitCommand(context.Background(), "what chains are supported?", "0x01")
	require.NoError(t, err)
	assert.Equal(t, models.ResultAnswer, result.Kind)
	assert.Contains(t, result.Message, "Cronos")
}

func TestSubmitCommandNoRoute(t *testing.T) {
	r, st := newTestRouter(t)

	result, err := r.SubmitCommand(context.Background(), "swap 100 USDC for ETH on ethereum", "0x01")
	require.NoError(t, err)
	assert.Equal(t, models.ResultFailed, result.Kind)

	// No record is created when no venue can serve the command
	records, err := st.ListByStatus(context.Background(), models.StatusFailed)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSubmitCommandRoutesToVenue(t *testing.T) {
	venue := swapVenue("dex")
	r, st := newTestRouter(t, venue)

	result, err := r.SubmitCommand(context.Background(), "swap 100 USDC for ETH on ethereum", "0x01")
	require.NoError(t, err)

	assert.Equal(t, models.ResultAwaitingAuthorization, result.Kind)
	require.NotEmpty(t, result.RecordID)
	require.NotNil(t, result.Quote)
	require.NotNil(t, result.Payload)

	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAuthorization, record.Status)
	assert.Equal(t, "dex", record.ChosenAdapter)
	assert.Equal(t, 0, record.RetryCount)
	assert.Equal(t, 1, venue.quoteCalls)
}

func TestSubmitCommandFailsOver(t *testing.T) {
	primary := swapVenue("primary")
	primary.quoteErr = adapters.ErrUnavailable
	backup := swapVenue("backup")
	r, st := newTestRouter(t, primary, backup)

	result, err := r.SubmitCommand(context.Background(), "swap 100 USDC for ETH on ethereum", "0x01")
	require.NoError(t, err)
	require.Equal(t, models.ResultAwaitingAuthorization, result.Kind)

	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, "backup", record.ChosenAdapter)
	assert.Equal(t, 1, record.RetryCount)
}

func TestSubmitCommandExhaustsAllVenues(t *testing.T) {
	first := swapVenue("first")
	first.quoteErr = adapters.ErrUnavailable
	second := swapVenue("second")
	second.buildErr = adapters.ErrUnavailable
	r, st := newTestRouter(t, first, second)

	result, err := r.SubmitCommand(context.Background(), "swap 100 USDC for ETH on ethereum", "0x01")
	require.NoError(t, err)
	assert.Equal(t, models.ResultFailed, result.Kind)
	require.NotEmpty(t, result.RecordID)

	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Equal(t, 2, record.RetryCount, "every attempted venue counts")
	assert.Contains(t, record.FailureReason, "2 candidate venues failed")
}

func TestResumeSettlesPayment(t *testing.T) {
	venue := paymentVenue("facilitator")
	r, st := newTestRouter(t, venue)
	key, payer := testKey(t)

	result, err := r.SubmitCommand(context.Background(), paymentText, payer)
	require.NoError(t, err)
	require.Equal(t, models.ResultAwaitingAuthorization, result.Kind)

	signature := signHash(t, key, result.Payload.SigningHash)

	settled, err := r.ResumeWithSignature(context.Background(), result.RecordID, signature)
	require.NoError(t, err)
	assert.Equal(t, models.ResultSettled, settled.Kind)
	require.NotNil(t, settled.Reference)
	assert.Equal(t, "0xfacilitator", settled.Reference.TxHash)
	assert.Equal(t, 25, settled.Reference.ChainID)

	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSettled, record.Status)
	assert.Equal(t, signature, record.Signature)
	assert.Equal(t, 1, venue.submitCalls)
}

func TestResumeIsIdempotent(t *testing.T) {
	venue := paymentVenue("facilitator")
	r, _ := newTestRouter(t, venue)
	key, payer := testKey(t)

	result, err := r.SubmitCommand(context.Background(), paymentText, payer)
	require.NoError(t, err)
	signature := signHash(t, key, result.Payload.SigningHash)

	first, err := r.ResumeWithSignature(context.Background(), result.RecordID, signature)
	require.NoError(t, err)
	require.Equal(t, models.ResultSettled, first.Kind)

	second, err := r.ResumeWithSignature(context.Background(), result.RecordID, signature)
	require.NoError(t, err)
	assert.Equal(t, models.ResultSettled, second.Kind)
	assert.Equal(t, first.Reference, second.Reference)
	assert.Equal(t, 1, venue.submitCalls, "a settled record must not be resubmitted")
}

func TestResumeRejectsWrongSigner(t *testing.T) {
	venue := paymentVenue("facilitator")
	r, st := newTestRouter(t, venue)
	key, payer := testKey(t)
	intruderKey, _ := testKey(t)

	result, err := r.SubmitCommand(context.Background(), paymentText, payer)
	require.NoError(t, err)

	_, err = r.ResumeWithSignature(context.Background(), result.RecordID,
		signHash(t, intruderKey, result.Payload.SigningHash))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorization rejected")

	// The record keeps waiting so the rightful payer can still sign
	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAuthorization, record.Status)
	assert.Equal(t, 0, venue.submitCalls)

	settled, err := r.ResumeWithSignature(context.Background(), result.RecordID,
		signHash(t, key, result.Payload.SigningHash))
	require.NoError(t, err)
	assert.Equal(t, models.ResultSettled, settled.Kind)
}

func TestResumeExpiredQuote(t *testing.T) {
	venue := paymentVenue("facilitator")
	venue.quoteTTL = -time.Minute
	r, st := newTestRouter(t, venue)
	key, payer := testKey(t)

	result, err := r.SubmitCommand(context.Background(), paymentText, payer)
	require.NoError(t, err)
	require.Equal(t, models.ResultAwaitingAuthorization, result.Kind)

	failed, err := r.ResumeWithSignature(context.Background(), result.RecordID,
		signHash(t, key, result.Payload.SigningHash))
	require.NoError(t, err)
	assert.Equal(t, models.ResultFailed, failed.Kind)
	assert.Contains(t, failed.Message, "expired")

	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, record.Status)
	assert.Equal(t, 0, venue.submitCalls, "an expired authorization must never reach the venue")
}

func TestResumeVenueRejectsSubmission(t *testing.T) {
	venue := paymentVenue("facilitator")
	venue.submitErr = adapters.ErrRejected
	r, st := newTestRouter(t, venue)
	key, payer := testKey(t)

	result, err := r.SubmitCommand(context.Background(), paymentText, payer)
	require.NoError(t, err)

	failed, err := r.ResumeWithSignature(context.Background(), result.RecordID,
		signHash(t, key, result.Payload.SigningHash))
	require.NoError(t, err)
	assert.Equal(t, models.ResultFailed, failed.Kind)

	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, record.Status)
}

func TestResumeVenueUnavailableAtSubmission(t *testing.T) {
	venue := paymentVenue("facilitator")
	venue.submitErr = adapters.ErrUnavailable
	r, st := newTestRouter(t, venue)
	key, payer := testKey(t)

	result, err := r.SubmitCommand(context.Background(), paymentText, payer)
	require.NoError(t, err)

	failed, err := r.ResumeWithSignature(context.Background(), result.RecordID,
		signHash(t, key, result.Payload.SigningHash))
	require.NoError(t, err)
	assert.Equal(t, models.ResultFailed, failed.Kind)
	assert.Contains(t, failed.Message, "new authorization")

	// The signed payload is venue-specific; the record expires instead of
	// failing over
	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, record.Status)
}

func TestResumeRequiresWaitingRecord(t *testing.T) {
	r, st := newTestRouter(t, paymentVenue("facilitator"))

	now := time.Now()
	require.NoError(t, st.Create(context.Background(), &models.TransactionRecord{
		ID:          "stuck",
		UserAddress: "0x01",
		Status:      models.StatusPrepared,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	_, err := r.ResumeWithSignature(context.Background(), "stuck", []byte{1})
	assert.ErrorIs(t, err, ErrNotResumable)

	_, err = r.ResumeWithSignature(context.Background(), "missing", []byte{1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancel(t *testing.T) {
	venue := paymentVenue("facilitator")
	r, st := newTestRouter(t, venue)
	key, payer := testKey(t)

	result, err := r.SubmitCommand(context.Background(), paymentText, payer)
	require.NoError(t, err)

	require.NoError(t, r.Cancel(context.Background(), result.RecordID))

	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Equal(t, "cancelled by user", record.FailureReason)

	// Cancelled records stay cancelled
	assert.Error(t, r.Cancel(context.Background(), result.RecordID))

	// A fresh record that already settled can no longer be cancelled
	second, err := r.SubmitCommand(context.Background(), paymentText, payer)
	require.NoError(t, err)
	_, err = r.ResumeWithSignature(context.Background(), second.RecordID,
		signHash(t, key, second.Payload.SigningHash))
	require.NoError(t, err)
	assert.Error(t, r.Cancel(context.Background(), second.RecordID))
}

func TestSweepExpiredQuotes(t *testing.T) {
	venue := paymentVenue("facilitator")
	venue.quoteTTL = -time.Minute
	r, st := newTestRouter(t, venue)
	_, payer := testKey(t)

	result, err := r.SubmitCommand(context.Background(), paymentText, payer)
	require.NoError(t, err)
	require.Equal(t, models.ResultAwaitingAuthorization, result.Kind)

	service := NewService(r, nil, st, DefaultServiceSettings(), &logger.EmptyLogger{})
	service.sweepExpired(context.Background())

	record, err := st.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, record.Status)
}

func TestMonitorFailsStaleSubmissions(t *testing.T) {
	r, st := newTestRouter(t, paymentVenue("facilitator"))

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, st.Create(context.Background(), &models.TransactionRecord{
		ID:          "orphan",
		UserAddress: "0x01",
		Status:      models.StatusSubmitted,
		CreatedAt:   stale,
		UpdatedAt:   stale,
	}))

	service := NewService(r, nil, st, DefaultServiceSettings(), &logger.EmptyLogger{})
	service.checkSubmitted(context.Background())

	record, err := st.Get(context.Background(), "orphan")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Contains(t, record.FailureReason, "timeout")
}
