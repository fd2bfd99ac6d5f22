// Package knowledge provides a read-only lookup over static protocol and
// product knowledge. The parser consults it to disambiguate protocol names
// mentioned in user text and the router answers plain questions from it;
// a miss never affects parsing correctness.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Entry describes one piece of knowledge with the keywords that match it
type Entry struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
	Protocol string   `json:"protocol,omitempty"`
}

// Base is an in-memory, read-only knowledge base
type Base struct {
	entries    []Entry
	maxResults int
}

// NewBase creates a knowledge base from the given entries
func NewBase(entries []Entry, maxResults int) *Base {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &Base{entries: entries, maxResults: maxResults}
}

// Load reads knowledge entries from a JSON file
func Load(path string, maxResults int) (*Base, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("knowledge base path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %v", err)
	}
	defer file.Close()

	var entries []Entry
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge base: %v", err)
	}

	return NewBase(entries, maxResults), nil
}

// Query returns entries whose keywords appear in the given text
func (b *Base) Query(text string) []Entry {
	if b == nil {
		return nil
	}

	text = strings.ToLower(text)

	results := make([]Entry, 0, b.maxResults)
	for _, entry := range b.entries {
		if matches(entry, text) {
			results = append(results, entry)
			if len(results) >= b.maxResults {
				break
			}
		}
	}
	return results
}

// ResolveProtocol returns the canonical protocol name for a mention in
// user text, or "" when nothing matches
func (b *Base) ResolveProtocol(mention string) string {
	if b == nil {
		return ""
	}
	mention = strings.ToLower(strings.TrimSpace(mention))
	if mention == "" {
		return ""
	}
	for _, entry := range b.entries {
		if entry.Protocol == "" {
			continue
		}
		for _, keyword := range entry.Keywords {
			if strings.ToLower(keyword) == mention {
				return entry.Protocol
			}
		}
	}
	return ""
}

func matches(entry Entry, text string) bool {
	for _, keyword := range entry.Keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}
		if strings.Contains(text, normalized) {
			return true
		}
	}
	return false
}

// DefaultEntries covers the execution venues the router ships with
var DefaultEntries = []Entry{
	{
		Title:    "OpenOcean",
		Content:  "OpenOcean is a DEX aggregator that routes swaps across multiple liquidity sources on EVM chains.",
		Keywords: []string{"openocean", "open ocean"},
		Protocol: "openocean",
	},
	{
		Title:    "KyberSwap",
		Content:  "KyberSwap aggregates DEX liquidity and returns encoded swap routes for EVM chains.",
		Keywords: []string{"kyberswap", "kyber"},
		Protocol: "kyberswap",
	},
	{
		Title:    "Meson",
		Content:  "Meson is a cross-chain bridge relay for stablecoins with fixed fees and off-chain signing requests.",
		Keywords: []string{"meson", "bridge relay"},
		Protocol: "meson",
	},
	{
		Title:    "x402",
		Content:  "x402 is an agentic payment network settling stablecoin payments through signed transfer authorizations.",
		Keywords: []string{"x402", "agentic payment", "payment network"},
		Protocol: "x402",
	},
	{
		Title:    "Supported chains",
		Content:  "The router supports Ethereum, Polygon, Arbitrum, BSC, Cronos and Base.",
		Keywords: []string{"chains", "networks", "supported"},
	},
}
