package adapters

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/wayfinder-hq/wayfinder-router/pkg/chains"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// x402QuoteTTL bounds how long a payment authorization remains valid
const x402QuoteTTL = 5 * time.Minute

// x402Networks maps chain IDs to the network names the facilitator expects
var x402Networks = map[int]string{
	8453: "base",
	25:   "cronos",
	137:  "polygon",
}

// tokenDomains maps token symbols to their EIP-712 domain name and version
var tokenDomains = map[string]struct {
	Name    string
	Version string
}{
	"USDC": {Name: "USD Coin", Version: "2"},
	"USDT": {Name: "Tether USD", Version: "1"},
}

// X402 is the agentic-payment network adapter. Payments settle through a
// facilitator that executes EIP-3009 transferWithAuthorization messages
// signed off-chain by the payer.
type X402 struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

var _ Adapter = (*X402)(nil)

// NewX402 creates an x402 adapter against the given facilitator endpoint
func NewX402(endpoint string, log logger.Logger) *X402 {
	return &X402{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// Name returns the adapter's registry name
func (x *X402) Name() string { return "x402" }

// Capability returns the static descriptor used for adapter selection.
// The facilitator only settles the two stablecoins it custodies gas for.
func (x *X402) Capability() *models.ProtocolCapability {
	chainIDs := make([]int, 0, len(x402Networks))
	for chainID := range x402Networks {
		chainIDs = append(chainIDs, chainID)
	}
	return &models.ProtocolCapability{
		Name:            x.Name(),
		SupportedChains: chainIDs,
		SupportedOps:    []models.Operation{models.OperationPayment, models.OperationTransfer},
		AssetAllowlist:  []string{"USDC", "USDT"},
	}
}

// x402Authorization carries the EIP-3009 authorization parameters
type x402Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  int64  `json:"validAfter"`
	ValidBefore int64  `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// x402Payload is the typed-data payload stored on the unsigned payload.
// It round-trips through persistence so Submit can reconstruct the
// facilitator request from the record alone.
type x402Payload struct {
	Network       string            `json:"network"`
	Asset         string            `json:"asset"`
	Memo          string            `json:"memo,omitempty"`
	Authorization x402Authorization `json:"authorization"`
	TypedData     json.RawMessage   `json:"typedData"`
}

// Quote verifies the facilitator supports the payment and prices it.
// Stablecoin payments settle one-to-one; the facilitator charges no fee
// to the payer.
func (x *X402) Quote(ctx context.Context, cmd *models.Command) (*models.Quote, error) {
	network, ok := x402Networks[cmd.SourceChain]
	if !ok {
		return nil, rejected("chain %d not supported", cmd.SourceChain)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.endpoint+"/supported", nil)
	if err != nil {
		return nil, unavailable("%v", err)
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("%v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable("failed to read response body: %v", err)
	}
	if err := classifyStatus(resp.StatusCode, string(bodyBytes)); err != nil {
		return nil, err
	}

	var supported struct {
		Networks []struct {
			Network string `json:"network"`
		} `json:"networks"`
	}
	if err := json.Unmarshal(bodyBytes, &supported); err != nil {
		return nil, invalidResponse("failed to decode supported networks: %v", err)
	}

	found := false
	for _, n := range supported.Networks {
		if n.Network == network {
			found = true
			break
		}
	}
	if !found {
		return nil, rejected("facilitator does not settle on network %s", network)
	}

	return &models.Quote{
		Adapter:        x.Name(),
		ExpectedOutput: new(big.Int).Set(cmd.AmountAtomic),
		EstimatedFee:   big.NewInt(0),
		PriceImpact:    0,
		ExpiresAt:      time.Now().Add(x402QuoteTTL),
	}, nil
}

// Build constructs the transferWithAuthorization typed data for signing
func (x *X402) Build(ctx context.Context, cmd *models.Command, quote *models.Quote) (*models.UnsignedPayload, error) {
	network, ok := x402Networks[cmd.SourceChain]
	if !ok {
		return nil, rejected("chain %d not supported", cmd.SourceChain)
	}

	token, ok := chains.ResolveToken(cmd.SourceAsset.Symbol, cmd.SourceChain)
	if !ok {
		return nil, rejected("token %s not available on chain %d", cmd.SourceAsset.Symbol, cmd.SourceChain)
	}

	domain, ok := tokenDomains[token.Symbol]
	if !ok {
		return nil, rejected("no signing domain for token %s", token.Symbol)
	}

	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate authorization nonce: %v", err)
	}
	nonce := hexutil.Encode(nonceBytes)

	if cmd.Payer == "" {
		return nil, rejected("payment requires a payer address")
	}

	auth := x402Authorization{
		From:        cmd.Payer,
		To:          cmd.Recipient,
		Value:       cmd.AmountAtomic.String(),
		ValidAfter:  0,
		ValidBefore: quote.ExpiresAt.Unix(),
		Nonce:       nonce,
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           ethmath.NewHexOrDecimal256(int64(cmd.SourceChain)),
			VerifyingContract: token.Address,
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       auth.Value,
			"validAfter":  strconv.FormatInt(auth.ValidAfter, 10),
			"validBefore": strconv.FormatInt(auth.ValidBefore, 10),
			"nonce":       auth.Nonce,
		},
	}

	signingHash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, invalidResponse("failed to hash typed data: %v", err)
	}

	typedDataJSON, err := json.Marshal(typedData)
	if err != nil {
		return nil, invalidResponse("failed to encode typed data: %v", err)
	}

	payloadJSON, err := json.Marshal(x402Payload{
		Network:       network,
		Asset:         token.Symbol,
		Memo:          cmd.Memo,
		Authorization: auth,
		TypedData:     typedDataJSON,
	})
	if err != nil {
		return nil, invalidResponse("failed to encode payload: %v", err)
	}

	return &models.UnsignedPayload{
		Kind:        models.PayloadTypedData,
		ChainID:     cmd.SourceChain,
		To:          cmd.Recipient,
		Value:       new(big.Int).Set(cmd.AmountAtomic),
		TypedData:   payloadJSON,
		SigningHash: signingHash,
		Authorizer:  auth.From,
	}, nil
}

// Submit hands the signed authorization to the facilitator for settlement
func (x *X402) Submit(ctx context.Context, payload *models.UnsignedPayload, signature []byte) (*models.SettlementReference, error) {
	var inner x402Payload
	if err := json.Unmarshal(payload.TypedData, &inner); err != nil {
		return nil, rejected("payload is not a payment authorization: %v", err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     inner.Network,
		"payload": map[string]interface{}{
			"signature":     hexutil.Encode(signature),
			"authorization": inner.Authorization,
		},
	})
	if err != nil {
		return nil, unavailable("failed to encode settle request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.endpoint+"/settle", bytes.NewReader(body))
	if err != nil {
		return nil, unavailable("%v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("%v", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, unavailable("failed to read settle response: %v", err)
	}
	if err := classifyStatus(httpResp.StatusCode, string(bodyBytes)); err != nil {
		return nil, err
	}

	var resp struct {
		TransactionHash string `json:"transactionHash"`
		Status          string `json:"status"`
		Reason          string `json:"reason,omitempty"`
	}
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, invalidResponse("failed to decode settle response: %v", err)
	}

	switch resp.Status {
	case "completed", "success":
		// settled
	default:
		return nil, rejected("settlement refused (%s): %s", resp.Status, resp.Reason)
	}
	if resp.TransactionHash == "" {
		return nil, invalidResponse("missing transaction hash")
	}

	x.logger.InfoWithChain(payload.ChainID, "x402 payment settled: %s", resp.TransactionHash)

	return &models.SettlementReference{
		TxHash:  resp.TransactionHash,
		ChainID: payload.ChainID,
		VenueID: inner.Authorization.Nonce,
	}, nil
}
