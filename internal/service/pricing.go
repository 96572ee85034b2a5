package service

import "math"

// eurPerThousandTokens holds the metering rates per model. Unknown models
// bill at the default rate.
var eurPerThousandTokens = map[string]struct{ Input, Output float64 }{
	"gpt-4o-mini": {Input: 0.00014, Output: 0.00055},
	"gpt-4o":      {Input: 0.0023, Output: 0.0092},
}

var defaultRate = eurPerThousandTokens["gpt-4o-mini"]

// CostEur computes the EUR cost of one request from its token usage.
func CostEur(model string, inputTokens, outputTokens int) float64 {
	rate, ok := eurPerThousandTokens[model]
	if !ok {
		rate = defaultRate
	}
	cost := float64(inputTokens)/1000*rate.Input + float64(outputTokens)/1000*rate.Output
	// Round to micro-euro, matching the ledger column precision.
	return math.Round(cost*1e6) / 1e6
}

// CreditsForTokens converts token usage into credits: one credit per started
// thousand tokens, and never less than one per request.
func CreditsForTokens(totalTokens int) int {
	if totalTokens <= 0 {
		return 1
	}
	return (totalTokens + 999) / 1000
}
