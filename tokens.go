package attrs

// ModelPrice represents the pricing for a specific model.
type ModelPrice struct {
	PromptTokCost     float64 // Cost per 1000 input tokens
	CompletionTokCost float64 // Cost per 1000 output tokens
}

// DefaultModelPricing returns input/output token costs (USD per 1K tokens).
func DefaultModelPricing() map[string]ModelPrice {
	return map[string]ModelPrice{
		// OpenAI
		"gpt-4o":        {PromptTokCost: 0.0050, CompletionTokCost: 0.0200},
		"gpt-4o-mini":   {PromptTokCost: 0.0006, CompletionTokCost: 0.0024},
		"gpt-4.1":       {PromptTokCost: 0.0020, CompletionTokCost: 0.0080},
		"gpt-4.1-mini":  {PromptTokCost: 0.0004, CompletionTokCost: 0.0016},
		"gpt-4.1-nano":  {PromptTokCost: 0.0001, CompletionTokCost: 0.0004},
		"gpt-3.5-turbo": {PromptTokCost: 0.0005, CompletionTokCost: 0.0015},

		// Google Gemini
		"gemini-2.5-pro":   {PromptTokCost: 0.00125, CompletionTokCost: 0.0100},
		"gemini-2.5-flash": {PromptTokCost: 0.00030, CompletionTokCost: 0.0025},
		"gemini-2.0-flash": {PromptTokCost: 0.00015, CompletionTokCost: 0.0006},
		"gemini-1.5-pro":   {PromptTokCost: 0.00125, CompletionTokCost: 0.0050},
		"gemini-1.5-flash": {PromptTokCost: 0.000075, CompletionTokCost: 0.00030},
	}
}

// EstimateTokensFromText provides a rough token estimate from text length.
func EstimateTokensFromText(text string) int {
	// ~4 characters per token for English text
	return (len(text) + 3) / 4
}

// EstimateCost prices a call of the given sizes. Unknown models cost 0.
func EstimateCost(model string, inputTokens, outputTokens int, pricing map[string]ModelPrice) float64 {
	if pricing == nil {
		pricing = DefaultModelPricing()
	}
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000*p.PromptTokCost + float64(outputTokens)/1000*p.CompletionTokCost
}
