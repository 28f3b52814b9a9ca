package attrs

import (
	"context"
	"time"
)

// Model represents a model identifier
type Model string

// Row is one dataset record: column name → value. Image columns hold a URI,
// a data URL or base64-encoded bytes.
type Row map[string]string

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Runner lets the Labeler schedule work with any concurrency model.
type Runner interface {
	Go(fn func() error) // schedule
	Wait() error        // join / propagate first err
}

// Invoker abstraction allows mocking, retrying, and caching
type Invoker interface {
	Generate(ctx context.Context, model Model, prompt string, media []*Part) ([]byte, error)
}

// SchemaInvoker is an Invoker that can constrain generation to the output
// schema of a prompt. The Labeler prefers it when available.
type SchemaInvoker interface {
	Invoker
	GenerateWithSchema(ctx context.Context, model Model, prompt string, media []*Part, schema *OutputSchema) ([]byte, error)
}

// TokenCounter returns the number of tokens in rendered prompt text.
type TokenCounter func(text string) int

// Options represents functional options for a labeling run
type Options struct {
	Model              string
	Timeout            time.Duration
	Runner             Runner                        // nil → DefaultRunner
	MaxRetries         int                           // 0 → no retry
	Backoff            time.Duration                 // backoff duration for retries
	RequestsPerSecond  float64                       // 0 → unlimited
	MaxInputTokens     int                           // 0 → no trimming
	TokenCounter       TokenCounter                  // nil → EstimateTokensFromText
	SelectedLabels     *LabelVocabulary              // nil → static options only
	SelectedLabelsDesc map[string]map[string]*string // per-call option descriptions
	TemplateOverride   string                        // twig template replacing the default skeleton
	OutputGuidelines   *string                       // overrides Config.OutputGuidelines
}

// Functional option constructors
func WithModel(name string) func(*Options) {
	return func(o *Options) { o.Model = name }
}

func WithTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.Timeout = d }
}

func WithRunner(r Runner) func(*Options) {
	return func(o *Options) { o.Runner = r }
}

func WithRetry(max int, backoff time.Duration) func(*Options) {
	return func(o *Options) {
		o.MaxRetries = max
		o.Backoff = backoff
	}
}

// WithRateLimit caps the number of model calls started per second.
func WithRateLimit(rps float64) func(*Options) {
	return func(o *Options) { o.RequestsPerSecond = rps }
}

func WithMaxInputTokens(n int) func(*Options) {
	return func(o *Options) { o.MaxInputTokens = n }
}

func WithTokenCounter(fn TokenCounter) func(*Options) {
	return func(o *Options) { o.TokenCounter = fn }
}

// WithSelectedLabels shares a label vocabulary across the run. Labels found in
// few-shot examples are appended to it.
func WithSelectedLabels(v *LabelVocabulary) func(*Options) {
	return func(o *Options) { o.SelectedLabels = v }
}

func WithSelectedLabelsDesc(desc map[string]map[string]*string) func(*Options) {
	return func(o *Options) { o.SelectedLabelsDesc = desc }
}

func WithTemplateOverride(tpl string) func(*Options) {
	return func(o *Options) { o.TemplateOverride = tpl }
}

func WithOutputGuidelines(guidelines string) func(*Options) {
	return func(o *Options) { o.OutputGuidelines = &guidelines }
}

// promptOptions projects the run options onto a single prompt build.
func (o *Options) promptOptions() []PromptOption {
	var opts []PromptOption
	if o.MaxInputTokens > 0 {
		opts = append(opts, PromptMaxTokens(o.MaxInputTokens, o.TokenCounter))
	}
	if o.SelectedLabels != nil {
		opts = append(opts, PromptSelectedLabels(o.SelectedLabels))
	}
	if o.SelectedLabelsDesc != nil {
		opts = append(opts, PromptSelectedLabelsDesc(o.SelectedLabelsDesc))
	}
	if o.TemplateOverride != "" {
		opts = append(opts, PromptTemplate(o.TemplateOverride))
	}
	if o.OutputGuidelines != nil {
		opts = append(opts, PromptOutputGuidelines(*o.OutputGuidelines))
	}
	return opts
}
