// Package parser turns free-form user text into typed commands. It
// tries intent patterns in priority order, falls back to a keyword
// classifier, and resolves fiat amounts into token quantities through
// the price feed before a command ever reaches the router.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wayfinder-hq/wayfinder-router/pkg/chains"
	"github.com/wayfinder-hq/wayfinder-router/pkg/knowledge"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/metrics"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
	"github.com/wayfinder-hq/wayfinder-router/pkg/pricefeed"
)

var (
	// ErrAmbiguousIntent means the text could not be mapped to a single
	// actionable command
	ErrAmbiguousIntent = errors.New("could not determine a clear intent")
	// ErrUnresolvableAsset means a mentioned token is unknown or not
	// available on the resolved chain
	ErrUnresolvableAsset = errors.New("could not resolve asset")
	// ErrPriceResolutionFailed means a fiat amount could not be
	// converted because no live price was available
	ErrPriceResolutionFailed = errors.New("could not resolve fiat amount")
)

// Config holds the parser's tunables
type Config struct {
	// DefaultChain is used when the text names no chain
	DefaultChain int
	// ConfidenceThreshold is the minimum classifier confidence accepted
	// when no pattern matched
	ConfidenceThreshold float64
}

// Parser converts user text into validated commands
type Parser struct {
	feed   pricefeed.Feed
	kb     *knowledge.Base
	config Config
	logger logger.Logger
}

// New creates a parser
func New(feed pricefeed.Feed, kb *knowledge.Base, config Config, log logger.Logger) *Parser {
	if config.DefaultChain == 0 {
		config.DefaultChain = 1
	}
	if config.ConfidenceThreshold <= 0 {
		config.ConfidenceThreshold = 0.5
	}
	return &Parser{feed: feed, kb: kb, config: config, logger: log}
}

// Parse extracts a typed command from free text
func (p *Parser) Parse(ctx context.Context, text string) (*models.Command, error) {
	cmd, err := p.parse(ctx, text)
	if err != nil {
		metrics.ParseFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	metrics.CommandsParsed.WithLabelValues(string(cmd.Operation)).Inc()
	return cmd, nil
}

func (p *Parser) parse(ctx context.Context, text string) (*models.Command, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", ErrAmbiguousIntent)
	}

	privacy := privacyPattern.MatchString(trimmed)

	if d, ok := extractPayment(trimmed); ok {
		return p.resolve(ctx, models.OperationPayment, d, trimmed)
	}
	if d, ok := extractBridge(trimmed); ok {
		op := models.OperationBridge
		if privacy {
			op = models.OperationPrivacyBridge
		}
		return p.resolve(ctx, op, d, trimmed)
	}
	if d, ok := extractSwap(trimmed); ok {
		return p.resolve(ctx, models.OperationSwap, d, trimmed)
	}
	if d, ok := extractTransfer(trimmed); ok {
		return p.resolve(ctx, models.OperationTransfer, d, trimmed)
	}
	if isQuery(trimmed) {
		return &models.Command{Operation: models.OperationQuery, RawText: trimmed}, nil
	}

	// No pattern matched; fall back to keyword classification
	op, confidence := classify(trimmed)
	if op == "" || confidence < p.config.ConfidenceThreshold {
		return nil, fmt.Errorf("%w: classifier confidence %.2f below threshold", ErrAmbiguousIntent, confidence)
	}
	p.logger.Debug("classified %q as %s with confidence %.2f", trimmed, op, confidence)

	if op == models.OperationQuery {
		return &models.Command{Operation: models.OperationQuery, RawText: trimmed}, nil
	}

	d := extractLoose(trimmed)
	if (op == models.OperationBridge || op == models.OperationPrivacyBridge) &&
		d.targetChain == "" && d.sourceChain != "" {
		// A single chain mention in bridge text is the destination
		d.targetChain = d.sourceChain
		d.sourceChain = ""
	}
	return p.resolve(ctx, op, d, trimmed)
}

// resolve turns an extracted draft into a validated command
func (p *Parser) resolve(ctx context.Context, op models.Operation, d *draft, text string) (*models.Command, error) {
	sourceChain := p.config.DefaultChain
	if d.sourceChain != "" {
		chainID, ok := chains.ResolveChain(d.sourceChain)
		if !ok {
			return nil, fmt.Errorf("%w: unknown chain %q", ErrAmbiguousIntent, d.sourceChain)
		}
		sourceChain = chainID
	}

	targetChain := sourceChain
	if op == models.OperationBridge || op == models.OperationPrivacyBridge {
		if d.targetChain == "" {
			return nil, fmt.Errorf("%w: bridge needs a destination chain", ErrAmbiguousIntent)
		}
		chainID, ok := chains.ResolveChain(d.targetChain)
		if !ok {
			return nil, fmt.Errorf("%w: unknown chain %q", ErrAmbiguousIntent, d.targetChain)
		}
		targetChain = chainID
		if targetChain == sourceChain {
			return nil, fmt.Errorf("%w: bridge source and destination are the same chain", ErrAmbiguousIntent)
		}
	}

	value, fiat, err := parseAmount(d.amountRaw)
	if err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(d.token))
	if symbol == "" {
		if fiat {
			return nil, fmt.Errorf("%w: fiat amount without a token to resolve it into", ErrAmbiguousIntent)
		}
		return nil, fmt.Errorf("%w: amount %q has no token unit", ErrAmbiguousIntent, d.amountRaw)
	}
	if !chains.IsKnownSymbol(symbol) {
		return nil, fmt.Errorf("%w: unknown token %q", ErrUnresolvableAsset, symbol)
	}
	token, ok := chains.ResolveToken(symbol, sourceChain)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not available on %s", ErrUnresolvableAsset, symbol, chains.GetChainName(sourceChain))
	}

	targetSymbol := symbol
	if op == models.OperationSwap {
		targetSymbol = strings.ToUpper(strings.TrimSpace(d.targetToken))
		if targetSymbol == "" {
			return nil, fmt.Errorf("%w: swap needs a target token", ErrAmbiguousIntent)
		}
		if !chains.IsKnownSymbol(targetSymbol) {
			return nil, fmt.Errorf("%w: unknown token %q", ErrUnresolvableAsset, targetSymbol)
		}
	}
	if _, ok := chains.ResolveToken(targetSymbol, targetChain); !ok {
		return nil, fmt.Errorf("%w: %s is not available on %s", ErrUnresolvableAsset, targetSymbol, chains.GetChainName(targetChain))
	}

	amount := value
	if fiat {
		amount, err = p.fiatToToken(ctx, value, token)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("resolved $%s into %s %s", value, amount, symbol)
	}

	atomic, err := chains.ToAtomic(amount, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmbiguousIntent, err)
	}

	cmd := &models.Command{
		Operation:    op,
		SourceAsset:  models.Asset{Symbol: symbol, ChainID: sourceChain},
		TargetAsset:  models.Asset{Symbol: targetSymbol, ChainID: targetChain},
		Amount:       amount,
		AmountAtomic: atomic,
		SourceChain:  sourceChain,
		TargetChain:  targetChain,
		Recipient:    d.recipient,
		Protocol:     p.kb.ResolveProtocol(protocolMention(text)),
		Memo:         d.memo,
		RawText:      text,
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmbiguousIntent, err)
	}
	return cmd, nil
}

// fiatToToken converts a USD amount into a token quantity at the
// current oracle price
func (p *Parser) fiatToToken(ctx context.Context, usdValue string, token chains.Token) (string, error) {
	usd, err := strconv.ParseFloat(usdValue, 64)
	if err != nil || usd <= 0 {
		return "", fmt.Errorf("%w: bad fiat amount %q", ErrAmbiguousIntent, usdValue)
	}

	price, err := p.feed.Price(ctx, token.Symbol)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPriceResolutionFailed, err)
	}
	if price <= 0 {
		return "", fmt.Errorf("%w: non-positive price for %s", ErrPriceResolutionFailed, token.Symbol)
	}

	quantity := usd / price
	if quantity <= 0 {
		return "", fmt.Errorf("%w: amount resolves to zero %s", ErrPriceResolutionFailed, token.Symbol)
	}

	precision := token.Decimals
	if precision > 8 {
		precision = 8
	}
	formatted := strconv.FormatFloat(quantity, 'f', precision, 64)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")
	return formatted, nil
}

// parseAmount splits a raw amount match into its numeric value and a
// fiat flag
func parseAmount(raw string) (string, bool, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false, fmt.Errorf("%w: no amount found", ErrAmbiguousIntent)
	}

	fiat := false
	if strings.HasPrefix(s, "$") {
		fiat = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	}
	for _, suffix := range []string{"dollars", "dollar", "usd"} {
		if strings.HasSuffix(s, suffix) {
			fiat = true
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return "", false, fmt.Errorf("%w: no amount found", ErrAmbiguousIntent)
	}
	return s, fiat, nil
}

// extractLoose pulls whatever fields it can out of unstructured text
// for the classifier path
func extractLoose(text string) *draft {
	d := &draft{}
	d.recipient = looseAddressPattern.FindString(text)

	// Strip the address first so its hex digits are never mistaken for
	// an amount
	stripped := looseAddressPattern.ReplaceAllString(text, " ")
	d.amountRaw = looseAmountPattern.FindString(stripped)

	for _, word := range wordPattern.FindAllString(stripped, -1) {
		upper := strings.ToUpper(word)
		if chains.IsKnownSymbol(upper) {
			if d.token == "" {
				d.token = upper
			} else if d.targetToken == "" && upper != d.token {
				d.targetToken = upper
			}
			continue
		}
		if _, ok := chains.ResolveChain(word); ok {
			if d.sourceChain == "" {
				d.sourceChain = word
			} else if d.targetChain == "" {
				d.targetChain = word
			}
		}
	}
	return d
}

// failureReason buckets parse errors for metrics
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrPriceResolutionFailed):
		return "price"
	case errors.Is(err, ErrUnresolvableAsset):
		return "asset"
	case errors.Is(err, ErrAmbiguousIntent):
		return "ambiguous"
	default:
		return "other"
	}
}
