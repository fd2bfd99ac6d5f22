package chains

import "strings"

// Token describes a token deployment on a specific chain
type Token struct {
	Symbol   string
	ChainID  int
	Address  string
	Decimals int
}

// NativeAddress is the placeholder address used for a chain's native asset
const NativeAddress = "0x0000000000000000000000000000000000000000"

// tokenRegistry maps token symbol to its per-chain deployments
var tokenRegistry = map[string]map[int]Token{
	"USDC": {
		1:     {Symbol: "USDC", ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
		137:   {Symbol: "USDC", ChainID: 137, Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6},
		42161: {Symbol: "USDC", ChainID: 42161, Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6},
		56:    {Symbol: "USDC", ChainID: 56, Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Decimals: 18},
		25:    {Symbol: "USDC", ChainID: 25, Address: "0xc21223249CA28397B4B6541dfFaEcC539BfF0c59", Decimals: 6},
		8453:  {Symbol: "USDC", ChainID: 8453, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	},
	"USDT": {
		1:     {Symbol: "USDT", ChainID: 1, Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
		137:   {Symbol: "USDT", ChainID: 137, Address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", Decimals: 6},
		42161: {Symbol: "USDT", ChainID: 42161, Address: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", Decimals: 6},
		56:    {Symbol: "USDT", ChainID: 56, Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
		25:    {Symbol: "USDT", ChainID: 25, Address: "0x66e428c3f67a68878562e79A0234c1F83c208770", Decimals: 6},
	},
	"ETH": {
		1:     {Symbol: "ETH", ChainID: 1, Address: NativeAddress, Decimals: 18},
		42161: {Symbol: "ETH", ChainID: 42161, Address: NativeAddress, Decimals: 18},
		8453:  {Symbol: "ETH", ChainID: 8453, Address: NativeAddress, Decimals: 18},
	},
	"WETH": {
		1:     {Symbol: "WETH", ChainID: 1, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
		42161: {Symbol: "WETH", ChainID: 42161, Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Decimals: 18},
		8453:  {Symbol: "WETH", ChainID: 8453, Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
	"DAI": {
		1:    {Symbol: "DAI", ChainID: 1, Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18},
		8453: {Symbol: "DAI", ChainID: 8453, Address: "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", Decimals: 18},
	},
	"CRO": {
		25: {Symbol: "CRO", ChainID: 25, Address: NativeAddress, Decimals: 18},
	},
}

// priceIDs maps token symbols to their price feed identifiers
var priceIDs = map[string]string{
	"USDC": "usd-coin",
	"USDT": "tether",
	"ETH":  "ethereum",
	"WETH": "weth",
	"DAI":  "dai",
	"CRO":  "crypto-com-chain",
}

// ResolveToken returns the deployment of a token symbol on a given chain
func ResolveToken(symbol string, chainID int) (Token, bool) {
	deployments, exists := tokenRegistry[strings.ToUpper(strings.TrimSpace(symbol))]
	if !exists {
		return Token{}, false
	}
	token, exists := deployments[chainID]
	return token, exists
}

// IsKnownSymbol returns true if the symbol exists on any supported chain
func IsKnownSymbol(symbol string) bool {
	_, exists := tokenRegistry[strings.ToUpper(strings.TrimSpace(symbol))]
	return exists
}

// ChainsForToken returns all chain IDs a token symbol is deployed on
func ChainsForToken(symbol string) []int {
	deployments, exists := tokenRegistry[strings.ToUpper(strings.TrimSpace(symbol))]
	if !exists {
		return nil
	}
	chainIDs := make([]int, 0, len(deployments))
	for chainID := range deployments {
		chainIDs = append(chainIDs, chainID)
	}
	return chainIDs
}

// PriceID returns the price feed identifier for a token symbol
func PriceID(symbol string) (string, bool) {
	id, exists := priceIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	return id, exists
}
