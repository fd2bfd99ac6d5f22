package resilience

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfinder-hq/wayfinder-router/pkg/adapters"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// stubAdapter is a scriptable venue for wrapper tests
type stubAdapter struct {
	name        string
	quoteErr    error
	submitErr   error
	quoteCalls  int
	submitCalls int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Capability() *models.ProtocolCapability {
	return &models.ProtocolCapability{
		Name:            s.name,
		SupportedChains: []int{1},
		SupportedOps:    []models.Operation{models.OperationSwap},
	}
}

func (s *stubAdapter) Quote(_ context.Context, _ *models.Command) (*models.Quote, error) {
	s.quoteCalls++
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	return &models.Quote{
		Adapter:        s.name,
		ExpectedOutput: big.NewInt(1000),
		EstimatedFee:   big.NewInt(0),
		ExpiresAt:      time.Now().Add(time.Minute),
	}, nil
}

func (s *stubAdapter) Build(_ context.Context, cmd *models.Command, _ *models.Quote) (*models.UnsignedPayload, error) {
	return &models.UnsignedPayload{Kind: models.PayloadTransaction, ChainID: cmd.SourceChain}, nil
}

func (s *stubAdapter) Submit(_ context.Context, _ *models.UnsignedPayload, _ []byte) (*models.SettlementReference, error) {
	s.submitCalls++
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &models.SettlementReference{TxHash: "0xdead", ChainID: 1}, nil
}

func testSettings() Settings {
	return Settings{
		Breaker: BreakerSettings{
			FailureThreshold: 2,
			Window:           time.Minute,
			Cooldown:         time.Minute,
			MaxCooldown:      time.Minute,
		},
		RateLimiter:   RateLimiterSettings{RequestsPerSecond: 1000, Burst: 1000},
		QuoteCacheTTL: time.Minute,
	}
}

func swapCommand() *models.Command {
	return &models.Command{
		Operation:    models.OperationSwap,
		SourceAsset:  models.Asset{Symbol: "USDC", ChainID: 1},
		TargetAsset:  models.Asset{Symbol: "ETH", ChainID: 1},
		Amount:       "100",
		AmountAtomic: big.NewInt(100000000),
		SourceChain:  1,
		TargetChain:  1,
	}
}

func TestWrapperQuoteCaching(t *testing.T) {
	w := NewWrapper(testSettings(), &logger.EmptyLogger{})
	adapter := &stubAdapter{name: "stub"}
	cmd := swapCommand()

	first, err := w.Quote(context.Background(), adapter, cmd)
	require.NoError(t, err)

	second, err := w.Quote(context.Background(), adapter, cmd)
	require.NoError(t, err)

	assert.Equal(t, 1, adapter.quoteCalls, "identical quote should be served from cache")
	assert.Equal(t, first.ExpectedOutput, second.ExpectedOutput)
}

func TestWrapperNormalizesErrors(t *testing.T) {
	t.Run("venue failure becomes unavailable", func(t *testing.T) {
		w := NewWrapper(testSettings(), &logger.EmptyLogger{})
		adapter := &stubAdapter{name: "down", quoteErr: adapters.ErrUnavailable}

		_, err := w.Quote(context.Background(), adapter, swapCommand())
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("business refusal becomes rejected", func(t *testing.T) {
		w := NewWrapper(testSettings(), &logger.EmptyLogger{})
		adapter := &stubAdapter{name: "picky", quoteErr: adapters.ErrRejected}

		_, err := w.Quote(context.Background(), adapter, swapCommand())
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("invalid response becomes unavailable", func(t *testing.T) {
		w := NewWrapper(testSettings(), &logger.EmptyLogger{})
		adapter := &stubAdapter{name: "weird", quoteErr: adapters.ErrInvalidResponse}

		_, err := w.Quote(context.Background(), adapter, swapCommand())
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestWrapperCircuitOpensAfterRepeatedFailures(t *testing.T) {
	w := NewWrapper(testSettings(), &logger.EmptyLogger{})
	adapter := &stubAdapter{name: "flaky", quoteErr: adapters.ErrUnavailable}
	cmd := swapCommand()

	_, err := w.Quote(context.Background(), adapter, cmd)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = w.Quote(context.Background(), adapter, cmd)
	assert.ErrorIs(t, err, ErrUnavailable)

	// Threshold reached; calls are now rejected without touching the venue
	_, err = w.Quote(context.Background(), adapter, cmd)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, adapter.quoteCalls)

	states := w.CircuitStates()
	assert.Equal(t, "open", states["flaky|quote"])
}

func TestWrapperEndpointBreakersAreIndependent(t *testing.T) {
	w := NewWrapper(testSettings(), &logger.EmptyLogger{})
	adapter := &stubAdapter{name: "flaky", quoteErr: adapters.ErrUnavailable}
	cmd := swapCommand()

	w.Quote(context.Background(), adapter, cmd)
	w.Quote(context.Background(), adapter, cmd)
	_, err := w.Quote(context.Background(), adapter, cmd)
	require.ErrorIs(t, err, ErrCircuitOpen)

	// The quote breaker is open; submissions must still reach the venue
	_, err = w.Submit(context.Background(), adapter, &models.UnsignedPayload{ChainID: 1}, []byte{1})
	require.NoError(t, err)
	assert.Equal(t, 1, adapter.submitCalls)

	states := w.CircuitStates()
	assert.Equal(t, "open", states["flaky|quote"])
	assert.Equal(t, "closed", states["flaky|submit"])
}

func TestWrapperEndpointLimitersAreIndependent(t *testing.T) {
	settings := testSettings()
	settings.RateLimiter = RateLimiterSettings{RequestsPerSecond: 1, Burst: 1}
	w := NewWrapper(settings, &logger.EmptyLogger{})
	adapter := &stubAdapter{name: "stub"}

	_, err := w.Quote(context.Background(), adapter, swapCommand())
	require.NoError(t, err)

	// The quote bucket is drained but the submit bucket is untouched
	_, err = w.Submit(context.Background(), adapter, &models.UnsignedPayload{ChainID: 1}, []byte{1})
	assert.NoError(t, err)
}

func TestWrapperRejectionsDoNotTripCircuit(t *testing.T) {
	w := NewWrapper(testSettings(), &logger.EmptyLogger{})
	adapter := &stubAdapter{name: "picky", quoteErr: adapters.ErrRejected}
	cmd := swapCommand()

	for i := 0; i < 5; i++ {
		_, err := w.Quote(context.Background(), adapter, cmd)
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, 5, adapter.quoteCalls, "rejections must keep reaching the venue")
}

func TestWrapperRateLimiting(t *testing.T) {
	settings := testSettings()
	settings.RateLimiter = RateLimiterSettings{RequestsPerSecond: 1, Burst: 1}
	w := NewWrapper(settings, &logger.EmptyLogger{})
	adapter := &stubAdapter{name: "stub"}

	_, err := w.Submit(context.Background(), adapter, &models.UnsignedPayload{ChainID: 1}, []byte{1})
	require.NoError(t, err)

	_, err = w.Submit(context.Background(), adapter, &models.UnsignedPayload{ChainID: 1}, []byte{1})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, adapter.submitCalls)
}

func TestWrapperResetCircuit(t *testing.T) {
	w := NewWrapper(testSettings(), &logger.EmptyLogger{})
	adapter := &stubAdapter{name: "flaky", quoteErr: adapters.ErrUnavailable}
	cmd := swapCommand()

	w.Quote(context.Background(), adapter, cmd)
	w.Quote(context.Background(), adapter, cmd)
	_, err := w.Quote(context.Background(), adapter, cmd)
	require.ErrorIs(t, err, ErrCircuitOpen)

	assert.True(t, w.ResetCircuit("flaky"))
	adapter.quoteErr = nil

	_, err = w.Quote(context.Background(), adapter, cmd)
	assert.NoError(t, err)

	assert.False(t, w.ResetCircuit("unknown"))
}
