package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/wayfinder-hq/wayfinder-router/pkg/chains"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// kyberQuoteTTL bounds how long a KyberSwap route may be executed
const kyberQuoteTTL = 20 * time.Second

// kyberChainSlugs maps chain IDs to the slugs the aggregator API expects
var kyberChainSlugs = map[int]string{
	1:     "ethereum",
	137:   "polygon",
	42161: "arbitrum",
	56:    "bsc",
	8453:  "base",
}

// KyberSwap is the swap aggregator adapter for the KyberSwap routes API
type KyberSwap struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

var _ Adapter = (*KyberSwap)(nil)

// NewKyberSwap creates a KyberSwap adapter against the given endpoint
func NewKyberSwap(endpoint string, log logger.Logger) *KyberSwap {
	return &KyberSwap{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// Name returns the adapter's registry name
func (k *KyberSwap) Name() string { return "kyberswap" }

// Capability returns the static descriptor used for adapter selection
func (k *KyberSwap) Capability() *models.ProtocolCapability {
	chainIDs := make([]int, 0, len(kyberChainSlugs))
	for chainID := range kyberChainSlugs {
		chainIDs = append(chainIDs, chainID)
	}
	return &models.ProtocolCapability{
		Name:            k.Name(),
		SupportedChains: chainIDs,
		SupportedOps:    []models.Operation{models.OperationSwap},
	}
}

// kyberRouteResponse mirrors the routes API response
type kyberRouteResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		RouteSummary struct {
			AmountOut string  `json:"amountOut"`
			GasUsd    float64 `json:"gasUsd,string"`
		} `json:"routeSummary"`
		RouterAddress string `json:"routerAddress"`
	} `json:"data"`
}

// kyberBuildResponse mirrors the route build response
type kyberBuildResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Data          string `json:"data"`
		RouterAddress string `json:"routerAddress"`
		AmountOut     string `json:"amountOut"`
	} `json:"data"`
}

// Quote fetches the best route summary for the swap
func (k *KyberSwap) Quote(ctx context.Context, cmd *models.Command) (*models.Quote, error) {
	slug, ok := kyberChainSlugs[cmd.SourceChain]
	if !ok {
		return nil, rejected("chain %d not supported", cmd.SourceChain)
	}

	inToken, ok := chains.ResolveToken(cmd.SourceAsset.Symbol, cmd.SourceChain)
	if !ok {
		return nil, rejected("token %s not available on chain %d", cmd.SourceAsset.Symbol, cmd.SourceChain)
	}
	outToken, ok := chains.ResolveToken(cmd.TargetAsset.Symbol, cmd.TargetChain)
	if !ok {
		return nil, rejected("token %s not available on chain %d", cmd.TargetAsset.Symbol, cmd.TargetChain)
	}

	query := url.Values{}
	query.Set("tokenIn", inToken.Address)
	query.Set("tokenOut", outToken.Address)
	query.Set("amountIn", cmd.AmountAtomic.String())

	reqURL := fmt.Sprintf("%s/%s/api/v1/routes?%s", k.endpoint, slug, query.Encode())
	var resp kyberRouteResponse
	if err := k.do(ctx, http.MethodGet, reqURL, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, rejected("route refused (code %d): %s", resp.Code, resp.Message)
	}

	amountOut, ok := new(big.Int).SetString(resp.Data.RouteSummary.AmountOut, 10)
	if !ok || amountOut.Sign() <= 0 {
		return nil, invalidResponse("bad amountOut %q", resp.Data.RouteSummary.AmountOut)
	}

	return &models.Quote{
		Adapter:        k.Name(),
		ExpectedOutput: amountOut,
		EstimatedFee:   big.NewInt(0),
		PriceImpact:    0,
		ExpiresAt:      time.Now().Add(kyberQuoteTTL),
	}, nil
}

// Build encodes the selected route into transaction calldata
func (k *KyberSwap) Build(ctx context.Context, cmd *models.Command, quote *models.Quote) (*models.UnsignedPayload, error) {
	slug, ok := kyberChainSlugs[cmd.SourceChain]
	if !ok {
		return nil, rejected("chain %d not supported", cmd.SourceChain)
	}

	inToken, _ := chains.ResolveToken(cmd.SourceAsset.Symbol, cmd.SourceChain)
	outToken, _ := chains.ResolveToken(cmd.TargetAsset.Symbol, cmd.TargetChain)

	body := map[string]interface{}{
		"tokenIn":   inToken.Address,
		"tokenOut":  outToken.Address,
		"amountIn":  cmd.AmountAtomic.String(),
		"recipient": cmd.Recipient,
	}

	reqURL := fmt.Sprintf("%s/%s/api/v1/route/build", k.endpoint, slug)
	var resp kyberBuildResponse
	if err := k.do(ctx, http.MethodPost, reqURL, body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, rejected("route build refused (code %d): %s", resp.Code, resp.Message)
	}

	callData, err := hexutil.Decode(resp.Data.Data)
	if err != nil {
		return nil, invalidResponse("bad calldata: %v", err)
	}

	return &models.UnsignedPayload{
		Kind:       models.PayloadTransaction,
		ChainID:    cmd.SourceChain,
		To:         resp.Data.RouterAddress,
		Value:      big.NewInt(0),
		Data:       callData,
		Authorizer: cmd.Recipient,
	}, nil
}

// Submit broadcasts the signed transaction through the venue relay
func (k *KyberSwap) Submit(ctx context.Context, payload *models.UnsignedPayload, signature []byte) (*models.SettlementReference, error) {
	slug, ok := kyberChainSlugs[payload.ChainID]
	if !ok {
		return nil, rejected("chain %d not supported", payload.ChainID)
	}

	body := map[string]string{"rawTransaction": hexutil.Encode(signature)}
	reqURL := fmt.Sprintf("%s/%s/api/v1/broadcast", k.endpoint, slug)

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			TxHash string `json:"txHash"`
		} `json:"data"`
	}
	if err := k.do(ctx, http.MethodPost, reqURL, body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 || resp.Data.TxHash == "" {
		return nil, rejected("broadcast refused (code %d): %s", resp.Code, resp.Message)
	}

	k.logger.InfoWithChain(payload.ChainID, "KyberSwap swap broadcast: %s", resp.Data.TxHash)

	return &models.SettlementReference{
		TxHash:  resp.Data.TxHash,
		ChainID: payload.ChainID,
	}, nil
}

// do performs an HTTP request against the venue API and decodes the response
func (k *KyberSwap) do(ctx context.Context, method, reqURL string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return unavailable("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return unavailable("%v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.httpClient.Do(req)
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
