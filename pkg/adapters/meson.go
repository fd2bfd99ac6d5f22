package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/wayfinder-hq/wayfinder-router/pkg/chains"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// mesonQuoteTTL bounds how long a bridge price may be executed. Bridge
// pricing is fixed-fee so the window is wider than for swaps.
const mesonQuoteTTL = 2 * time.Minute

// mesonChainSlugs maps chain IDs to the slugs the relay API expects
var mesonChainSlugs = map[int]string{
	1:     "eth",
	137:   "polygon",
	42161: "arb",
	56:    "bnb",
	25:    "cronos",
	8453:  "base",
}

// Meson is the cross-chain bridge relay adapter. It also serves privacy
// bridge commands, which route through the relay's shielded pool hop.
type Meson struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

var _ Adapter = (*Meson)(nil)

// NewMeson creates a Meson adapter against the given endpoint
func NewMeson(endpoint string, log logger.Logger) *Meson {
	return &Meson{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// Name returns the adapter's registry name
func (m *Meson) Name() string { return "meson" }

// Capability returns the static descriptor used for adapter selection
func (m *Meson) Capability() *models.ProtocolCapability {
	chainIDs := make([]int, 0, len(mesonChainSlugs))
	for chainID := range mesonChainSlugs {
		chainIDs = append(chainIDs, chainID)
	}
	return &models.ProtocolCapability{
		Name:            m.Name(),
		SupportedChains: chainIDs,
		SupportedOps:    []models.Operation{models.OperationBridge, models.OperationPrivacyBridge},
		AssetAllowlist:  []string{"USDC", "USDT"},
	}
}

// mesonPriceResponse mirrors the relay price response
type mesonPriceResponse struct {
	Fee           string `json:"fee"`
	EstimatedTime int    `json:"estimatedTime"`
	MinAmount     string `json:"minAmount"`
	MaxAmount     string `json:"maxAmount"`
	Error         string `json:"error,omitempty"`
}

// mesonEncodeResponse mirrors the relay swap encode response
type mesonEncodeResponse struct {
	Encoded        string `json:"encoded"`
	SigningRequest struct {
		Message string `json:"message"`
		Hash    string `json:"hash"`
	} `json:"signingRequest"`
	Error string `json:"error,omitempty"`
}

// pair formats the chain:token pair identifier the relay expects
func (m *Meson) pair(symbol string, chainID int) (string, error) {
	slug, ok := mesonChainSlugs[chainID]
	if !ok {
		return "", rejected("chain %d not supported", chainID)
	}
	return fmt.Sprintf("%s:%s", slug, strings.ToLower(symbol)), nil
}

// Quote fetches the bridge fee and bounds for the transfer
func (m *Meson) Quote(ctx context.Context, cmd *models.Command) (*models.Quote, error) {
	from, err := m.pair(cmd.SourceAsset.Symbol, cmd.SourceChain)
	if err != nil {
		return nil, err
	}
	to, err := m.pair(cmd.TargetAsset.Symbol, cmd.TargetChain)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"from":   from,
		"to":     to,
		"amount": cmd.Amount,
	}

	var resp mesonPriceResponse
	if err := m.post(ctx, "/api/v1/price", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, rejected("price refused: %s", resp.Error)
	}

	token, ok := chains.ResolveToken(cmd.SourceAsset.Symbol, cmd.SourceChain)
	if !ok {
		return nil, rejected("token %s not available on chain %d", cmd.SourceAsset.Symbol, cmd.SourceChain)
	}

	fee, err := chains.ToAtomic(resp.Fee, token.Decimals)
	if err != nil {
		return nil, invalidResponse("bad fee %q: %v", resp.Fee, err)
	}

	// Amount bounds are business rules, not availability problems
	if minAmount, err := chains.ToAtomic(resp.MinAmount, token.Decimals); err == nil && minAmount.Sign() > 0 {
		if cmd.AmountAtomic.Cmp(minAmount) < 0 {
			return nil, rejected("amount below bridge minimum %s %s", resp.MinAmount, cmd.SourceAsset.Symbol)
		}
	}
	if maxAmount, err := chains.ToAtomic(resp.MaxAmount, token.Decimals); err == nil && maxAmount.Sign() > 0 {
		if cmd.AmountAtomic.Cmp(maxAmount) > 0 {
			return nil, rejected("amount above bridge maximum %s %s", resp.MaxAmount, cmd.SourceAsset.Symbol)
		}
	}

	output := new(big.Int).Sub(cmd.AmountAtomic, fee)
	if output.Sign() <= 0 {
		return nil, rejected("bridge fee %s exceeds amount", resp.Fee)
	}

	return &models.Quote{
		Adapter:        m.Name(),
		ExpectedOutput: output,
		EstimatedFee:   fee,
		PriceImpact:    0,
		ExpiresAt:      time.Now().Add(mesonQuoteTTL),
	}, nil
}

// Build encodes the bridge transfer and returns its off-chain signing request
func (m *Meson) Build(ctx context.Context, cmd *models.Command, quote *models.Quote) (*models.UnsignedPayload, error) {
	from, err := m.pair(cmd.SourceAsset.Symbol, cmd.SourceChain)
	if err != nil {
		return nil, err
	}
	to, err := m.pair(cmd.TargetAsset.Symbol, cmd.TargetChain)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"from":        from,
		"to":          to,
		"amount":      cmd.Amount,
		"fromAddress": cmd.Recipient,
		"recipient":   cmd.Recipient,
		"expireTs":    quote.ExpiresAt.Unix(),
	}
	if cmd.Operation == models.OperationPrivacyBridge {
		body["shielded"] = true
	}

	var resp mesonEncodeResponse
	if err := m.post(ctx, "/api/v1/swap", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, rejected("swap encode refused: %s", resp.Error)
	}
	if resp.SigningRequest.Hash == "" {
		return nil, invalidResponse("missing signing request hash")
	}

	signingHash, err := hexutil.Decode(resp.SigningRequest.Hash)
	if err != nil {
		return nil, invalidResponse("bad signing hash: %v", err)
	}

	typedData, err := json.Marshal(map[string]string{
		"encoded": resp.Encoded,
		"message": resp.SigningRequest.Message,
	})
	if err != nil {
		return nil, invalidResponse("failed to encode signing request: %v", err)
	}

	return &models.UnsignedPayload{
		Kind:        models.PayloadTypedData,
		ChainID:     cmd.SourceChain,
		TypedData:   typedData,
		SigningHash: signingHash,
		Authorizer:  cmd.Recipient,
	}, nil
}

// Submit hands the signed transfer to the relay for execution
func (m *Meson) Submit(ctx context.Context, payload *models.UnsignedPayload, signature []byte) (*models.SettlementReference, error) {
	var encoded struct {
		Encoded string `json:"encoded"`
	}
	if err := json.Unmarshal(payload.TypedData, &encoded); err != nil {
		return nil, rejected("payload is not a bridge signing request: %v", err)
	}

	body := map[string]string{
		"fromAddress": payload.Authorizer,
		"recipient":   payload.Authorizer,
		"signature":   hexutil.Encode(signature),
	}

	var resp struct {
		SwapID string `json:"swapId"`
		Error  string `json:"error,omitempty"`
	}
	if err := m.post(ctx, fmt.Sprintf("/api/v1/swap/%s", encoded.Encoded), body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, rejected("swap submit refused: %s", resp.Error)
	}
	if resp.SwapID == "" {
		return nil, invalidResponse("missing swap id")
	}

	m.logger.InfoWithChain(payload.ChainID, "Meson bridge submitted: %s", resp.SwapID)

	return &models.SettlementReference{
		VenueID: resp.SwapID,
		ChainID: payload.ChainID,
	}, nil
}

// post performs a POST request against the relay API and decodes the response
func (m *Meson) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return unavailable("failed to encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+path, bytes.NewReader(encoded))
	if err != nil {
		return unavailable("%v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return unavailable("%v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailable("failed to read response body: %v", err)
	}
	if err := classifyStatus(resp.StatusCode, string(bodyBytes)); err != nil {
		return err
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return invalidResponse("failed to decode response: %v", err)
	}
	return nil
}
