package adapters

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

func bridgeCommand() *models.Command {
	return &models.Command{
		Operation:    models.OperationBridge,
		SourceAsset:  models.Asset{Symbol: "USDC", ChainID: 1},
		TargetAsset:  models.Asset{Symbol: "USDC", ChainID: 137},
		Amount:       "100",
		AmountAtomic: big.NewInt(100000000),
		SourceChain:  1,
		TargetChain:  137,
		Recipient:    testRecipient,
	}
}

func mesonPriceServer(t *testing.T, fee string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/price", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"fee":       fee,
			"minAmount": "1",
			"maxAmount": "100000",
		})
	}))
}

func TestMesonQuote(t *testing.T) {
	t.Run("prices the bridge", func(t *testing.T) {
		server := mesonPriceServer(t, "0.5")
		defer server.Close()

		adapter := NewMeson(server.URL, &logger.EmptyLogger{})
		quote, err := adapter.Quote(context.Background(), bridgeCommand())
		require.NoError(t, err)

		// 100 USDC at six decimals minus the 0.5 USDC relay fee
		assert.Equal(t, big.NewInt(500000), quote.EstimatedFee)
		assert.Equal(t, big.NewInt(99500000), quote.ExpectedOutput)
	})

	t.Run("unknown source token rejected", func(t *testing.T) {
		server := mesonPriceServer(t, "0.5")
		defer server.Close()

		adapter := NewMeson(server.URL, &logger.EmptyLogger{})
		cmd := bridgeCommand()
		cmd.SourceAsset.Symbol = "DOGE"
		cmd.TargetAsset.Symbol = "DOGE"

		_, err := adapter.Quote(context.Background(), cmd)
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("amount below bridge minimum rejected", func(t *testing.T) {
		server := mesonPriceServer(t, "0.5")
		defer server.Close()

		adapter := NewMeson(server.URL, &logger.EmptyLogger{})
		cmd := bridgeCommand()
		cmd.Amount = "0.2"
		cmd.AmountAtomic = big.NewInt(200000)

		_, err := adapter.Quote(context.Background(), cmd)
		assert.ErrorIs(t, err, ErrRejected)
	})
}
