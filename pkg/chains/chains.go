package chains

import "strings"

// ChainList contains the list of supported chain IDs
var ChainList = []int{
	1,     // Ethereum
	137,   // Polygon
	42161, // Arbitrum
	56,    // Binance Smart Chain
	25,    // Cronos
	8453,  // Base
}

// chainNames maps chain IDs to their names
var chainNames = map[int]string{
	1:     "ETHEREUM",
	137:   "POLYGON",
	42161: "ARBITRUM",
	56:    "BSC",
	25:    "CRONOS",
	8453:  "BASE",
}

// chainAliases maps lowercase names found in user text to chain IDs
var chainAliases = map[string]int{
	"ethereum": 1,
	"eth":      1,
	"mainnet":  1,
	"polygon":  137,
	"matic":    137,
	"arbitrum": 42161,
	"arb":      42161,
	"bsc":      56,
	"binance":  56,
	"bnb":      56,
	"cronos":   25,
	"cro":      25,
	"base":     8453,
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID int) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}

// ResolveChain resolves a chain name or alias from user text to a chain ID
func ResolveChain(alias string) (int, bool) {
	chainID, exists := chainAliases[strings.ToLower(strings.TrimSpace(alias))]
	return chainID, exists
}

// IsSupported returns true if the chain ID is in the supported list
func IsSupported(chainID int) bool {
	_, exists := chainNames[chainID]
	return exists
}
