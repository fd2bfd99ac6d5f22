package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// Regex fragments shared by the intent patterns. Amounts optionally
// carry a fiat marker ("$" prefix or a usd/dollar suffix); token symbols
// are validated against the token registry after extraction.
const (
	amountExpr  = `\$?\s*\d+(?:,\d{3})*(?:\.\d+)?(?:\s*(?:usd|dollars?)\b)?`
	tokenExpr   = `[a-zA-Z]{2,6}`
	addressExpr = `0x[0-9a-fA-F]{4,64}`
	chainExpr   = `[a-zA-Z]+`
)

// Intent patterns, tried in priority order. Payment outranks transfer
// and swap because "pay" phrasing is the strongest signal of intent;
// bridge phrasing is checked before transfer so a chain destination is
// never mistaken for a recipient.
var (
	paymentPattern = regexp.MustCompile(fmt.Sprintf(
		`(?i)\b(?:pay|settle)\b(?:\s+(?:invoice|bill)(?:\s+(?P<memo>[\w#-]+))?)?\s+(?P<amount>%s)\s*(?:(?:of|worth\s+of)\s+)?(?P<token>%s)?\s+to\s+(?P<recipient>%s)\b(?:\s+on\s+(?P<chain>%s))?`,
		amountExpr, tokenExpr, addressExpr, chainExpr))

	swapPattern = regexp.MustCompile(fmt.Sprintf(
		`(?i)\b(?:swap|convert|exchange|trade)\s+(?P<amount>%s)\s*(?:of\s+)?(?P<token>%s)\s+(?:to|for|into)\s+(?P<target>%s)\b(?:\s+on\s+(?P<chain>%s))?`,
		amountExpr, tokenExpr, tokenExpr, chainExpr))

	bridgePattern = regexp.MustCompile(fmt.Sprintf(
		`(?i)\b(?:bridge|move)\s+(?P<amount>%s)\s*(?:of\s+)?(?P<token>%s)\s+(?:from\s+(?P<source>%s)\s+)?to\s+(?P<targetchain>%s)\b`,
		amountExpr, tokenExpr, chainExpr, chainExpr))

	transferPattern = regexp.MustCompile(fmt.Sprintf(
		`(?i)\b(?:send|transfer)\s+(?P<amount>%s)\s*(?:of\s+)?(?P<token>%s)?\s+to\s+(?P<recipient>%s)\b(?:\s+on\s+(?P<chain>%s))?`,
		amountExpr, tokenExpr, addressExpr, chainExpr))

	privacyPattern = regexp.MustCompile(`(?i)\b(?:privately|private|privacy|shielded|anonymous(?:ly)?)\b`)

	queryPattern = regexp.MustCompile(`(?i)^\s*(?:what|which|how|when|where|why|who|is|are|does|do|can|list|show|tell)\b`)

	protocolPattern = regexp.MustCompile(`(?i)\b(?:via|using|through|with)\s+([a-zA-Z0-9]+)\b`)

	looseAmountPattern  = regexp.MustCompile(amountExpr)
	looseAddressPattern = regexp.MustCompile(addressExpr)
)

// draft holds the raw strings extracted from user text before any
// resolution against the token and chain registries
type draft struct {
	amountRaw   string
	token       string
	targetToken string
	recipient   string
	sourceChain string
	targetChain string
	memo        string
}

// named returns the value of a named capture group in a match
func named(re *regexp.Regexp, match []string, name string) string {
	for i, groupName := range re.SubexpNames() {
		if groupName == name && i < len(match) {
			return match[i]
		}
	}
	return ""
}

// extractPayment matches payment phrasing. An invoice or bill mention
// carries its reference through as the payment memo.
func extractPayment(text string) (*draft, bool) {
	match := paymentPattern.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	return &draft{
		amountRaw:   named(paymentPattern, match, "amount"),
		token:       named(paymentPattern, match, "token"),
		recipient:   named(paymentPattern, match, "recipient"),
		sourceChain: named(paymentPattern, match, "chain"),
		memo:        named(paymentPattern, match, "memo"),
	}, true
}

// extractSwap matches swap phrasing
func extractSwap(text string) (*draft, bool) {
	match := swapPattern.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	return &draft{
		amountRaw:   named(swapPattern, match, "amount"),
		token:       named(swapPattern, match, "token"),
		targetToken: named(swapPattern, match, "target"),
		sourceChain: named(swapPattern, match, "chain"),
	}, true
}

// extractBridge matches bridge phrasing. The destination chain is
// mandatory; a bridge without a destination is not a bridge.
func extractBridge(text string) (*draft, bool) {
	match := bridgePattern.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	return &draft{
		amountRaw:   named(bridgePattern, match, "amount"),
		token:       named(bridgePattern, match, "token"),
		sourceChain: named(bridgePattern, match, "source"),
		targetChain: named(bridgePattern, match, "targetchain"),
	}, true
}

// extractTransfer matches transfer phrasing
func extractTransfer(text string) (*draft, bool) {
	match := transferPattern.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	return &draft{
		amountRaw:   named(transferPattern, match, "amount"),
		token:       named(transferPattern, match, "token"),
		recipient:   named(transferPattern, match, "recipient"),
		sourceChain: named(transferPattern, match, "chain"),
	}, true
}

// isQuery reports whether the text reads as a question
func isQuery(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasSuffix(trimmed, "?") || queryPattern.MatchString(trimmed)
}

// protocolMention returns the word following via/using/through/with
func protocolMention(text string) string {
	match := protocolPattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return match[1]
}
