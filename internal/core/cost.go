package core

import (
	"math"

	"healthchat/pkg"
)

// ModelPrice is the USD price per 1K tokens.
type ModelPrice struct {
	Input  float64
	Output float64
}

// baselineModel prices any model missing from the table.
const baselineModel = "gpt-3.5-turbo"

var modelPrices = map[string]ModelPrice{
	"gpt-4":         {Input: 0.03, Output: 0.06},
	"gpt-4-turbo":   {Input: 0.01, Output: 0.03},
	"gpt-4o":        {Input: 0.005, Output: 0.015},
	"gpt-4o-mini":   {Input: 0.00015, Output: 0.0006},
	"gpt-3.5-turbo": {Input: 0.0015, Output: 0.002},
}

// CalculateCost estimates the cost of a completion, rounded to 6 decimals.
func CalculateCost(inputTokens, outputTokens int, model string) pkg.Cost {
	price, ok := modelPrices[model]
	if !ok {
		price = modelPrices[baselineModel]
	}
	in := float64(inputTokens) / 1000 * price.Input
	out := float64(outputTokens) / 1000 * price.Output
	return pkg.Cost{
		InputCost:  round6(in),
		OutputCost: round6(out),
		TotalCost:  round6(in + out),
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
