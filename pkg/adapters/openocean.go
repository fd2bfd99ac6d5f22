package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/wayfinder-hq/wayfinder-router/pkg/chains"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// openOceanQuoteTTL bounds how long an OpenOcean quote may be executed
const openOceanQuoteTTL = 30 * time.Second

// OpenOcean is the swap aggregator adapter for the OpenOcean v4 API
type OpenOcean struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

var _ Adapter = (*OpenOcean)(nil)

// NewOpenOcean creates an OpenOcean adapter against the given endpoint
func NewOpenOcean(endpoint string, log logger.Logger) *OpenOcean {
	return &OpenOcean{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// Name returns the adapter's registry name
func (o *OpenOcean) Name() string { return "openocean" }

// Capability returns the static descriptor used for adapter selection
func (o *OpenOcean) Capability() *models.ProtocolCapability {
	return &models.ProtocolCapability{
		Name:            o.Name(),
		SupportedChains: []int{1, 56, 137, 42161, 8453},
		SupportedOps:    []models.Operation{models.OperationSwap},
	}
}

// openOceanQuoteResponse mirrors the v4 quote response envelope
type openOceanQuoteResponse struct {
	Code int `json:"code"`
	Data struct {
		OutAmount    string `json:"outAmount"`
		EstimatedGas string `json:"estimatedGas"`
		PriceImpact  string `json:"price_impact"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// openOceanSwapResponse mirrors the v4 swap build response envelope
type openOceanSwapResponse struct {
	Code int `json:"code"`
	Data struct {
		To    string `json:"to"`
		Value string `json:"value"`
		Data  string `json:"data"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Quote fetches a priced swap route
func (o *OpenOcean) Quote(ctx context.Context, cmd *models.Command) (*models.Quote, error) {
	inToken, ok := chains.ResolveToken(cmd.SourceAsset.Symbol, cmd.SourceChain)
	if !ok {
		return nil, rejected("token %s not available on chain %d", cmd.SourceAsset.Symbol, cmd.SourceChain)
	}
	outToken, ok := chains.ResolveToken(cmd.TargetAsset.Symbol, cmd.TargetChain)
	if !ok {
		return nil, rejected("token %s not available on chain %d", cmd.TargetAsset.Symbol, cmd.TargetChain)
	}

	query := url.Values{}
	query.Set("inTokenAddress", inToken.Address)
	query.Set("outTokenAddress", outToken.Address)
	query.Set("amount", cmd.AmountAtomic.String())

	var resp openOceanQuoteResponse
	if err := o.get(ctx, fmt.Sprintf("/v4/%d/quote", cmd.SourceChain), query, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 200 {
		return nil, rejected("quote refused (code %d): %s", resp.Code, resp.Error)
	}

	outAmount, ok := new(big.Int).SetString(resp.Data.OutAmount, 10)
	if !ok || outAmount.Sign() <= 0 {
		return nil, invalidResponse("bad outAmount %q", resp.Data.OutAmount)
	}

	fee := big.NewInt(0)
	if gas, ok := new(big.Int).SetString(resp.Data.EstimatedGas, 10); ok {
		fee = gas
	}

	priceImpact, _ := strconv.ParseFloat(strings.TrimSuffix(resp.Data.PriceImpact, "%"), 64)

	return &models.Quote{
		Adapter:        o.Name(),
		ExpectedOutput: outAmount,
		EstimatedFee:   fee,
		PriceImpact:    priceImpact,
		ExpiresAt:      time.Now().Add(openOceanQuoteTTL),
	}, nil
}

// Build fetches the encoded swap transaction for signing
func (o *OpenOcean) Build(ctx context.Context, cmd *models.Command, quote *models.Quote) (*models.UnsignedPayload, error) {
	inToken, _ := chains.ResolveToken(cmd.SourceAsset.Symbol, cmd.SourceChain)
	outToken, _ := chains.ResolveToken(cmd.TargetAsset.Symbol, cmd.TargetChain)

	query := url.Values{}
	query.Set("inTokenAddress", inToken.Address)
	query.Set("outTokenAddress", outToken.Address)
	query.Set("amount", cmd.AmountAtomic.String())
	query.Set("account", cmd.Recipient)

	var resp openOceanSwapResponse
	if err := o.get(ctx, fmt.Sprintf("/v4/%d/swap", cmd.SourceChain), query, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 200 {
		return nil, rejected("swap build refused (code %d): %s", resp.Code, resp.Error)
	}

	callData, err := hexutil.Decode(resp.Data.Data)
	if err != nil {
		return nil, invalidResponse("bad calldata: %v", err)
	}

	value := big.NewInt(0)
	if resp.Data.Value != "" {
		if parsed, ok := new(big.Int).SetString(resp.Data.Value, 10); ok {
			value = parsed
		}
	}

	return &models.UnsignedPayload{
		Kind:       models.PayloadTransaction,
		ChainID:    cmd.SourceChain,
		To:         resp.Data.To,
		Value:      value,
		Data:       callData,
		Authorizer: cmd.Recipient,
	}, nil
}

// Submit broadcasts the signed transaction through the venue relay
func (o *OpenOcean) Submit(ctx context.Context, payload *models.UnsignedPayload, signature []byte) (*models.SettlementReference, error) {
	body, err := json.Marshal(map[string]string{
		"rawTransaction": hexutil.Encode(signature),
	})
	if err != nil {
		return nil, unavailable("failed to encode broadcast request: %v", err)
	}

	reqURL := fmt.Sprintf("%s/v4/%d/broadcast", o.endpoint, payload.ChainID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, unavailable("%v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("%v", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, unavailable("failed to read broadcast response: %v", err)
	}
	if err := classifyStatus(httpResp.StatusCode, string(bodyBytes)); err != nil {
		return nil, err
	}

	var resp struct {
		Code int `json:"code"`
		Data struct {
			TransactionHash string `json:"transactionHash"`
		} `json:"data"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, invalidResponse("failed to decode broadcast response: %v", err)
	}
	if resp.Code != 200 || resp.Data.TransactionHash == "" {
		return nil, rejected("broadcast refused (code %d): %s", resp.Code, resp.Error)
	}

	o.logger.InfoWithChain(payload.ChainID, "OpenOcean swap broadcast: %s", resp.Data.TransactionHash)

	return &models.SettlementReference{
		TxHash:  resp.Data.TransactionHash,
		ChainID: payload.ChainID,
	}, nil
}

// get performs a GET request against the venue API and decodes the response
func (o *OpenOcean) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	reqURL := o.endpoint + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return unavailable("%v", err)
	}

	resp, err := o.httpClient.Do(req)
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
