package models

import (
	"fmt"
	"math/big"
	"strings"
)

// Operation is the kind of action a parsed command requests
type Operation string

const (
	OperationSwap          Operation = "swap"
	OperationBridge        Operation = "bridge"
	OperationTransfer      Operation = "transfer"
	OperationPayment       Operation = "payment"
	OperationPrivacyBridge Operation = "privacy_bridge"
	OperationQuery         Operation = "query"
)

// Operations lists every supported operation
var Operations = []Operation{
	OperationSwap,
	OperationBridge,
	OperationTransfer,
	OperationPayment,
	OperationPrivacyBridge,
	OperationQuery,
}

// Asset identifies a token on a specific chain
type Asset struct {
	Symbol  string `json:"symbol"`
	ChainID int    `json:"chain_id"`
}

func (a Asset) String() string {
	return fmt.Sprintf("%s@%d", a.Symbol, a.ChainID)
}

// Command is the typed user intent produced by the parser.
// Amount is in display units; AmountAtomic is the resolved source token
// quantity in atomic units and must be strictly positive before the
// command is handed to the router.
type Command struct {
	Operation    Operation `json:"operation"`
	SourceAsset  Asset     `json:"source_asset"`
	TargetAsset  Asset     `json:"target_asset"`
	Amount       string    `json:"amount"`
	AmountAtomic *big.Int  `json:"amount_atomic"`
	SourceChain  int       `json:"source_chain"`
	TargetChain  int       `json:"target_chain"`
	Payer        string    `json:"payer,omitempty"`
	Recipient    string    `json:"recipient,omitempty"`
	Protocol     string    `json:"protocol,omitempty"`
	Memo         string    `json:"memo,omitempty"`
	RawText      string    `json:"raw_text,omitempty"`
}

// Validate checks the invariants a command must satisfy before execution
func (c *Command) Validate() error {
	if c.Operation == OperationQuery {
		return nil
	}
	if c.AmountAtomic == nil || c.AmountAtomic.Sign() <= 0 {
		return fmt.Errorf("command amount must resolve to a strictly positive token quantity")
	}
	if c.SourceChain == 0 {
		return fmt.Errorf("command source chain is not resolved")
	}
	if c.TargetChain == 0 {
		return fmt.Errorf("command target chain is not resolved")
	}
	if c.Operation != OperationBridge && c.Operation != OperationPrivacyBridge && c.SourceChain != c.TargetChain {
		return fmt.Errorf("source and target chains must match for %s operations", c.Operation)
	}
	return nil
}

// CacheKey returns a normalized key identifying this command for quote
// caching on a given adapter
func (c *Command) CacheKey(adapter string) string {
	amount := "0"
	if c.AmountAtomic != nil {
		amount = c.AmountAtomic.String()
	}
	return strings.Join([]string{
		adapter,
		string(c.Operation),
		c.SourceAsset.String(),
		c.TargetAsset.String(),
		amount,
		strings.ToLower(c.Recipient),
	}, "|")
}
