package parser

import (
	"regexp"
	"strings"

	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// intentKeywords scores free text against each operation when no
// pattern matched. Weights reflect how strongly a word implies the
// operation on its own.
var intentKeywords = map[models.Operation]map[string]int{
	models.OperationSwap: {
		"swap": 3, "convert": 3, "exchange": 3, "trade": 2, "sell": 2, "buy": 2,
	},
	models.OperationBridge: {
		"bridge": 3, "cross-chain": 3, "move": 1, "relay": 2,
	},
	models.OperationTransfer: {
		"send": 3, "transfer": 3,
	},
	models.OperationPayment: {
		"pay": 3, "payment": 3, "invoice": 3, "bill": 2, "settle": 2,
	},
	models.OperationPrivacyBridge: {
		"private": 3, "privately": 3, "shielded": 3, "anonymous": 2, "privacy": 3,
	},
	models.OperationQuery: {
		"what": 2, "which": 2, "how": 2, "supported": 2, "fee": 1, "fees": 1,
	},
}

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z-]*`)

// classify scores the text against every operation and returns the best
// one with a confidence in [0, 1]. Confidence is the winner's share of
// the total score, so text mixing several intents scores low.
func classify(text string) (models.Operation, float64) {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	scores := make(map[models.Operation]int)
	total := 0
	for _, word := range words {
		for op, keywords := range intentKeywords {
			if weight, ok := keywords[word]; ok {
				scores[op] += weight
				total += weight
			}
		}
	}
	if total == 0 {
		return "", 0
	}

	var best models.Operation
	bestScore := 0
	for _, op := range models.Operations {
		if scores[op] > bestScore {
			best = op
			bestScore = scores[op]
		}
	}

	// Privacy wording piggybacks on bridge wording; the combination is
	// a privacy bridge, not a tie.
	if scores[models.OperationPrivacyBridge] > 0 && scores[models.OperationBridge] > 0 {
		return models.OperationPrivacyBridge,
			float64(scores[models.OperationPrivacyBridge]+scores[models.OperationBridge]) / float64(total)
	}

	return best, float64(bestScore) / float64(total)
}
