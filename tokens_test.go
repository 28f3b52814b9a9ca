package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokensFromText(t *testing.T) {
	assert.Equal(t, 0, EstimateTokensFromText(""))
	assert.Equal(t, 1, EstimateTokensFromText("abc"))
	assert.Equal(t, 1, EstimateTokensFromText("abcd"))
	assert.Equal(t, 2, EstimateTokensFromText("abcde"))
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.0050+0.0200, EstimateCost("gpt-4o", 1000, 1000, nil), 1e-12)
	assert.Equal(t, 0.0, EstimateCost("unknown-model", 1000, 1000, nil))

	custom := map[string]ModelPrice{"local": {PromptTokCost: 1, CompletionTokCost: 2}}
	assert.InDelta(t, 0.5+1.0, EstimateCost("local", 500, 500, custom), 1e-12)
}
