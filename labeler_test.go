package attrs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{"text": fmt.Sprintf("row-%d", i)}
	}
	return rows
}

// echoColor answers blue for odd rows and red for even rows.
func echoColor(prompt string) (string, error) {
	for i := 9; i >= 0; i-- {
		if strings.Contains(prompt, fmt.Sprintf("Text: row-%d\n", i)) {
			if i%2 == 1 {
				return `{"color": "blue", "brand": "acme"}`, nil
			}
			return "```json\n{\"color\": \"red\", \"brand\": \"acme\"}\n```", nil
		}
	}
	return "", errors.New("unknown row")
}

func TestLabeler_Label(t *testing.T) {
	task := newTestTask(t, productConfig())
	invoker := NewMockInvoker(echoColor)
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	rows := labelRows(5)
	anns, err := labeler.Label(context.Background(), rows, nil, WithModel("gemini-2.0-flash"))
	require.NoError(t, err)
	require.Len(t, anns, 5)

	for i, ann := range anns {
		require.NotNil(t, ann)
		assert.True(t, ann.SuccessfullyLabeled, "row %d", i)
		want := "red"
		if i%2 == 1 {
			want = "blue"
		}
		color, _ := ann.LabelText("color")
		assert.Equal(t, want, color, "row %d", i)

		sample, err := ann.Sample()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("row-%d", i), sample["text"])
	}

	calls := invoker.Calls()
	assert.Len(t, calls, 5)
	for _, c := range calls {
		assert.Equal(t, Model("gemini-2.0-flash"), c.Model)
	}
	// caller rows are left untouched
	assert.NotContains(t, rows[0], OutputDictKey)
}

func TestLabeler_ProviderErrors(t *testing.T) {
	task := newTestTask(t, productConfig())
	invoker := NewMockInvoker(func(prompt string) (string, error) {
		if strings.Contains(prompt, "row-1\n") {
			return "", errors.New("quota exceeded")
		}
		if strings.Contains(prompt, "row-2\n") {
			return "no json here", nil
		}
		return `{"color": "red"}`, nil
	})
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	anns, err := labeler.Label(context.Background(), labelRows(3), nil)
	require.NoError(t, err)
	require.Len(t, anns, 3)

	assert.True(t, anns[0].SuccessfullyLabeled)

	assert.False(t, anns[1].SuccessfullyLabeled)
	require.NotNil(t, anns[1].Error)
	assert.Equal(t, ErrorTypeLLMProvider, anns[1].Error.Type)
	assert.Contains(t, anns[1].Error.Message, "quota exceeded")
	assert.NotEmpty(t, anns[1].ID)

	assert.False(t, anns[2].SuccessfullyLabeled)
	require.NotNil(t, anns[2].Error)
	assert.Equal(t, ErrorTypeInvalidLLMResponse, anns[2].Error.Type)
}

func TestLabeler_Retry(t *testing.T) {
	task := newTestTask(t, productConfig())
	var attempts int32
	invoker := NewMockInvoker(func(string) (string, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return "", errors.New("temporary")
		}
		return `{"color": "blue"}`, nil
	})
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	anns, err := labeler.Label(context.Background(), labelRows(1), nil, WithRetry(2, time.Millisecond))
	require.NoError(t, err)
	assert.True(t, anns[0].SuccessfullyLabeled)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestLabeler_RetryExhausted(t *testing.T) {
	task := newTestTask(t, productConfig())
	invoker := NewMockInvoker(func(string) (string, error) { return "", errors.New("down") })
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	anns, err := labeler.Label(context.Background(), labelRows(1), nil, WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, ErrorTypeLLMProvider, anns[0].Error.Type)
	assert.Len(t, invoker.Calls(), 2)
}

type blockingInvoker struct{}

func (blockingInvoker) Generate(ctx context.Context, _ Model, _ string, _ []*Part) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLabeler_Timeout(t *testing.T) {
	task := newTestTask(t, productConfig())
	labeler := NewLabelerWithLogger(task, blockingInvoker{}, discardLogger())

	anns, err := labeler.Label(context.Background(), labelRows(2), nil, WithTimeout(10*time.Millisecond))
	require.NoError(t, err)
	for _, ann := range anns {
		require.NotNil(t, ann.Error)
		assert.Equal(t, ErrorTypeLLMProvider, ann.Error.Type)
		assert.Contains(t, ann.Error.Message, "deadline exceeded")
	}
}

func TestLabeler_CancelledContext(t *testing.T) {
	task := newTestTask(t, productConfig())
	invoker := NewStaticInvoker(`{"color": "red"}`)
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	anns, err := labeler.Label(ctx, labelRows(4), nil)
	require.NoError(t, err)
	require.Len(t, anns, 4)
	for _, ann := range anns {
		require.NotNil(t, ann)
		assert.False(t, ann.SuccessfullyLabeled)
		assert.Equal(t, ErrorTypeLLMProvider, ann.Error.Type)
	}
	assert.Empty(t, invoker.Calls())
}

func TestLabeler_NilInvoker(t *testing.T) {
	task := newTestTask(t, productConfig())
	_, err := NewLabeler(task, nil).Label(context.Background(), labelRows(1), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLabeler_PromptErrorFailsRun(t *testing.T) {
	task := newTestTask(t, productConfig())
	invoker := NewStaticInvoker(`{}`)
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	_, err := labeler.Label(context.Background(), labelRows(2), nil, WithTemplateOverride("{% if x %}unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0")
	assert.Empty(t, invoker.Calls())
}

func TestLabeler_FewShotSeeds(t *testing.T) {
	cfg := productConfig()
	cfg.FewShotNum = 1
	task := newTestTask(t, cfg)
	invoker := NewStaticInvoker(`{"color": "red"}`)
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	examples := []Row{
		{"text": "incomplete", "color": "red"},
		{"text": "first-seed", "color": "red", "tags": "A", "brand": "acme"},
		{"text": "second-seed", "color": "blue", "tags": "B", "brand": "acme"},
	}
	_, err := labeler.Label(context.Background(), labelRows(1), examples)
	require.NoError(t, err)

	calls := invoker.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "first-seed")
	assert.NotContains(t, calls[0].Prompt, "second-seed")
	assert.NotContains(t, calls[0].Prompt, "incomplete")
}

func TestLabeler_SelectedLabels(t *testing.T) {
	cfg := productConfig()
	cfg.FewShotNum = 1
	task := newTestTask(t, cfg)
	invoker := NewStaticInvoker(`{"tags": "A;D;Q"}`)
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())
	vocab := NewLabelVocabulary(map[string][]string{"tags": {"A"}})

	anns, err := labeler.Label(context.Background(), labelRows(2),
		[]Row{{"text": "seed", "color": "red", "tags": "D", "brand": "acme"}},
		WithSelectedLabels(vocab))
	require.NoError(t, err)

	for _, ann := range anns {
		text, _ := ann.LabelText("tags")
		assert.Equal(t, "A;D", text)
		assert.Equal(t, []string{"A", "D"}, ann.SelectedLabels["tags"])
	}
}

func TestLabeler_RateLimit(t *testing.T) {
	task := newTestTask(t, productConfig())
	labeler := NewLabelerWithLogger(task, NewStaticInvoker(`{"color": "red"}`), discardLogger())

	start := time.Now()
	anns, err := labeler.Label(context.Background(), labelRows(3), nil, WithRateLimit(20))
	require.NoError(t, err)
	assert.Len(t, anns, 3)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLabeler_PoolRunner(t *testing.T) {
	task := newTestTask(t, productConfig())
	labeler := NewLabelerWithLogger(task, NewMockInvoker(echoColor), discardLogger())
	runner, err := NewPoolRunner(2)
	require.NoError(t, err)

	anns, err := labeler.Label(context.Background(), labelRows(6), nil, WithRunner(runner))
	require.NoError(t, err)
	require.Len(t, anns, 6)
	color, _ := anns[3].LabelText("color")
	assert.Equal(t, "blue", color)
}

func TestLabeler_Multimodal(t *testing.T) {
	cfg := productConfig()
	cfg.ImageColumns = []string{"photo"}
	task := newTestTask(t, cfg)
	invoker := NewStaticInvoker(`{"color": "red"}`)
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	anns, err := labeler.Label(context.Background(), []Row{{"text": "shirt", "photo": "https://example.com/shirt.jpg"}}, nil)
	require.NoError(t, err)

	calls := invoker.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Media, 1)
	assert.Equal(t, "image/jpeg", calls[0].Media[0].MimeType)
	assert.Contains(t, anns[0].Prompt, `"photo":"https://example.com/shirt.jpg"`)
}

func TestLabeler_DryRun(t *testing.T) {
	task := newTestTask(t, productConfig())
	invoker := NewStaticInvoker(`{}`)
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	stats, err := labeler.DryRun(context.Background(), labelRows(3), nil, WithModel("gemini-2.0-flash"))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.PromptCalls)
	assert.Equal(t, map[string]int{"gemini-2.0-flash": 3}, stats.ModelCalls)
	assert.Equal(t, 3*estimateOutputTokens(3), stats.TotalOutputTokens)
	assert.Greater(t, stats.TotalInputTokens, 0)
	assert.Greater(t, stats.EstimatedCost, 0.0)
	assert.Zero(t, stats.OverBudgetPrompts)
	assert.Empty(t, invoker.Calls())
}

func TestLabeler_DryRunOverBudget(t *testing.T) {
	task := newTestTask(t, productConfig())
	labeler := NewLabelerWithLogger(task, NewStaticInvoker(`{}`), discardLogger())

	stats, err := labeler.DryRun(context.Background(), labelRows(2), nil,
		WithMaxInputTokens(5), WithTokenCounter(func(s string) int { return len(s) }))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.OverBudgetPrompts)
	assert.Equal(t, 0.0, stats.EstimatedCost, "unknown model")
}

func TestLabeler_OutputSchema(t *testing.T) {
	task := newTestTask(t, productConfig())

	t.Run("schema reaches the invoker", func(t *testing.T) {
		invoker := NewStaticInvoker(`{"color": "red", "tags": "A", "brand": "acme"}`)
		labeler := NewLabelerWithLogger(task, invoker, discardLogger())

		anns, err := labeler.Label(context.Background(), labelRows(2), nil)
		require.NoError(t, err)

		calls := invoker.Calls()
		require.Len(t, calls, 2)
		for _, c := range calls {
			require.NotNil(t, c.Schema)
			assert.Equal(t, []string{"color", "tags", "brand"}, c.Schema.Required)
			assert.Contains(t, c.Schema.Definitions, "color")
		}
		for _, ann := range anns {
			assert.True(t, ann.SuccessfullyLabeled)
			assert.Empty(t, ann.Diagnostics)
		}
	})

	t.Run("extra key is reported", func(t *testing.T) {
		invoker := NewStaticInvoker(`{"color": "red", "tags": "A", "brand": "acme", "size": "L"}`)
		labeler := NewLabelerWithLogger(task, invoker, discardLogger())

		anns, err := labeler.Label(context.Background(), labelRows(1), nil)
		require.NoError(t, err)
		ann := anns[0]
		assert.True(t, ann.SuccessfullyLabeled)
		require.Len(t, ann.Diagnostics, 1)
		assert.Empty(t, ann.Diagnostics[0].Attribute)
		assert.Contains(t, ann.Diagnostics[0].Violation, "size")
		assert.Equal(t, TextValue("L"), ann.Label["size"])
	})

	t.Run("dropped option becomes a missing property", func(t *testing.T) {
		invoker := NewStaticInvoker(`{"color": "green", "tags": "A", "brand": "acme"}`)
		labeler := NewLabelerWithLogger(task, invoker, discardLogger())

		anns, err := labeler.Label(context.Background(), labelRows(1), nil)
		require.NoError(t, err)
		diags := anns[0].Diagnostics
		require.Len(t, diags, 2)
		assert.Equal(t, Diagnostic{Attribute: "color", Value: "green", Discarded: []string{"green"}, Dropped: true}, diags[0])
		assert.Contains(t, diags[1].Violation, "missing properties")
		assert.Contains(t, diags[1].Violation, "color")
	})
}

func TestLabeler_PlainInvokerSkipsSchema(t *testing.T) {
	task := newTestTask(t, productConfig())
	labeler := NewLabelerWithLogger(task, plainInvoker{}, discardLogger())

	anns, err := labeler.Label(context.Background(), labelRows(1), nil)
	require.NoError(t, err)
	color, _ := anns[0].LabelText("color")
	assert.Equal(t, "blue", color)
}

type plainInvoker struct{}

func (plainInvoker) Generate(context.Context, Model, string, []*Part) ([]byte, error) {
	return []byte(`{"color": "blue", "tags": "B", "brand": "acme"}`), nil
}

func TestLabeler_SelectedLabelsDesc(t *testing.T) {
	task := newTestTask(t, productConfig())
	invoker := NewStaticInvoker(`{"color": "red"}`)
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	_, err := labeler.Label(context.Background(), labelRows(1), nil,
		WithSelectedLabelsDesc(map[string]map[string]*string{"color": {"red": StringPtr("a warm hue")}}))
	require.NoError(t, err)

	calls := invoker.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "red: a warm hue")
}

func TestLabeler_OutputGuidelines(t *testing.T) {
	task := newTestTask(t, productConfig())
	invoker := NewStaticInvoker(`{"color": "red"}`)
	labeler := NewLabelerWithLogger(task, invoker, discardLogger())

	anns, err := labeler.Label(context.Background(), labelRows(1), nil,
		WithOutputGuidelines("Answer with JSON keys {attribute_json} only."))
	require.NoError(t, err)

	calls := invoker.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Answer with JSON keys {")
	assert.Contains(t, calls[0].Prompt, "Main color")
	assert.NotContains(t, calls[0].Prompt, "You will return the extracted attributes")
	assert.Equal(t, calls[0].Prompt, anns[0].Prompt)
}
