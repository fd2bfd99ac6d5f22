package registry

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// capAdapter is a capability-only adapter for selection tests
type capAdapter struct {
	name       string
	capability models.ProtocolCapability
}

func (a *capAdapter) Name() string                               { return a.name }
func (a *capAdapter) Capability() *models.ProtocolCapability     { return &a.capability }
func (a *capAdapter) Quote(context.Context, *models.Command) (*models.Quote, error) {
	return nil, nil
}
func (a *capAdapter) Build(context.Context, *models.Command, *models.Quote) (*models.UnsignedPayload, error) {
	return nil, nil
}
func (a *capAdapter) Submit(context.Context, *models.UnsignedPayload, []byte) (*models.SettlementReference, error) {
	return nil, nil
}

func swapAdapter(name string, chains ...int) *capAdapter {
	return &capAdapter{name: name, capability: models.ProtocolCapability{
		Name:            name,
		SupportedChains: chains,
		SupportedOps:    []models.Operation{models.OperationSwap},
	}}
}

func swapCmd(chainID int) *models.Command {
	return &models.Command{
		Operation:    models.OperationSwap,
		SourceAsset:  models.Asset{Symbol: "USDC", ChainID: chainID},
		TargetAsset:  models.Asset{Symbol: "ETH", ChainID: chainID},
		AmountAtomic: big.NewInt(1),
		SourceChain:  chainID,
		TargetChain:  chainID,
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(swapAdapter("a", 1)))
	assert.Error(t, reg.Register(swapAdapter("a", 1)))
}

func TestSelectFiltersByCapability(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(swapAdapter("mainnet-only", 1)))
	require.NoError(t, reg.Register(swapAdapter("polygon-only", 137)))

	candidates, err := reg.Select(swapCmd(137))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "polygon-only", candidates[0].Name())
}

func TestSelectNoRoute(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(swapAdapter("mainnet-only", 1)))

	_, err := reg.Select(swapCmd(25))
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestSelectPreferenceOrder(t *testing.T) {
	reg := New(map[models.Operation][]string{
		models.OperationSwap: {"second", "first"},
	})
	require.NoError(t, reg.Register(swapAdapter("first", 1)))
	require.NoError(t, reg.Register(swapAdapter("second", 1)))
	require.NoError(t, reg.Register(swapAdapter("third", 1)))

	candidates, err := reg.Select(swapCmd(1))
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "second", candidates[0].Name())
	assert.Equal(t, "first", candidates[1].Name())
	// Unranked adapters come last in registration order
	assert.Equal(t, "third", candidates[2].Name())
}

func TestSelectEqualRankKeepsRegistrationOrder(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(swapAdapter("a", 1)))
	require.NoError(t, reg.Register(swapAdapter("b", 1)))

	candidates, err := reg.Select(swapCmd(1))
	require.NoError(t, err)
	assert.Equal(t, "a", candidates[0].Name())
	assert.Equal(t, "b", candidates[1].Name())
}

func TestSelectHonorsUserNamedProtocol(t *testing.T) {
	reg := New(map[models.Operation][]string{
		models.OperationSwap: {"first"},
	})
	require.NoError(t, reg.Register(swapAdapter("first", 1)))
	require.NoError(t, reg.Register(swapAdapter("named", 1)))

	cmd := swapCmd(1)
	cmd.Protocol = "named"

	candidates, err := reg.Select(cmd)
	require.NoError(t, err)
	assert.Equal(t, "named", candidates[0].Name())
}

func TestSelectChecksAssetAllowlist(t *testing.T) {
	reg := New(nil)
	restricted := &capAdapter{name: "stables", capability: models.ProtocolCapability{
		Name:            "stables",
		SupportedChains: []int{1},
		SupportedOps:    []models.Operation{models.OperationSwap},
		AssetAllowlist:  []string{"USDT"},
	}}
	require.NoError(t, reg.Register(restricted))

	_, err := reg.Select(swapCmd(1))
	assert.ErrorIs(t, err, ErrNoRoute)
}
