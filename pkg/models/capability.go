package models

import "strings"

// ProtocolCapability is the static descriptor each adapter registers
// with the protocol registry
type ProtocolCapability struct {
	Name            string
	SupportedChains []int
	SupportedOps    []Operation
	// AssetAllowlist restricts the adapter to specific token symbols.
	// Empty means any known asset.
	AssetAllowlist []string
}

// SupportsChain returns true if the adapter covers the given chain
func (c *ProtocolCapability) SupportsChain(chainID int) bool {
	for _, id := range c.SupportedChains {
		if id == chainID {
			return true
		}
	}
	return false
}

// SupportsOperation returns true if the adapter covers the given operation
func (c *ProtocolCapability) SupportsOperation(op Operation) bool {
	for _, supported := range c.SupportedOps {
		if supported == op {
			return true
		}
	}
	return false
}

// SupportsAsset returns true if the asset passes the allowlist
func (c *ProtocolCapability) SupportsAsset(symbol string) bool {
	if len(c.AssetAllowlist) == 0 {
		return true
	}
	for _, allowed := range c.AssetAllowlist {
		if strings.EqualFold(allowed, symbol) {
			return true
		}
	}
	return false
}

// Covers reports whether this capability covers every dimension of the
// command: operation, both chains and both assets
func (c *ProtocolCapability) Covers(cmd *Command) bool {
	if !c.SupportsOperation(cmd.Operation) {
		return false
	}
	if !c.SupportsChain(cmd.SourceChain) || !c.SupportsChain(cmd.TargetChain) {
		return false
	}
	if !c.SupportsAsset(cmd.SourceAsset.Symbol) {
		return false
	}
	if cmd.TargetAsset.Symbol != "" && !c.SupportsAsset(cmd.TargetAsset.Symbol) {
		return false
	}
	return true
}
