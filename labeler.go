package attrs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"
)

// Labeler runs a Task over a batch of rows with an Invoker.
type Labeler struct {
	task    *Task
	invoker Invoker
	log     *slog.Logger
}

// NewLabeler returns a Labeler that logs with slog.Default().
func NewLabeler(task *Task, invoker Invoker) *Labeler {
	return NewLabelerWithLogger(task, invoker, slog.Default())
}

func NewLabelerWithLogger(task *Task, invoker Invoker, log *slog.Logger) *Labeler {
	if log == nil {
		log = slog.Default()
	}
	return &Labeler{task: task, invoker: invoker, log: log}
}

// ExecutionStats summarizes a labeling run without calling the model.
type ExecutionStats struct {
	PromptCalls       int            `json:"promptCalls"`
	ModelCalls        map[string]int `json:"modelCalls"`
	SeedExamples      int            `json:"seedExamples"`
	TotalInputTokens  int            `json:"totalInputTokens"`
	TotalOutputTokens int            `json:"totalOutputTokens"`
	EstimatedCost     float64        `json:"estimatedCost"` // USD
	OverBudgetPrompts int            `json:"overBudgetPrompts"`
}

func (l *Labeler) options(optFns []func(*Options)) Options {
	opts := Options{
		Model:          l.task.cfg.Model.Name,
		MaxInputTokens: l.task.cfg.Model.MaxInputTokens,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// seeds returns the prepared few-shot examples for a run.
func (l *Labeler) seeds(examples []Row) []Row {
	n := l.task.cfg.FewShotNum
	if n <= 0 {
		return nil
	}
	prepared := l.task.PrepareExamples(examples)
	if len(prepared) > n {
		prepared = prepared[:n]
	}
	return prepared
}

// buildPrompts constructs every prompt up front so a configuration error
// fails the whole run before any model call.
func (l *Labeler) buildPrompts(rows []Row, seeds []Row, opts *Options) ([]Row, []*Prompt, error) {
	inputs := make([]Row, len(rows))
	prompts := make([]*Prompt, len(rows))
	popts := opts.promptOptions()
	for i, r := range rows {
		inputs[i] = r.Clone()
		if inputs[i] == nil {
			inputs[i] = Row{}
		}
		p, err := l.task.ConstructPrompt(inputs[i], seeds, popts...)
		if err != nil {
			return nil, nil, fmt.Errorf("construct prompt for row %d: %w", i, err)
		}
		prompts[i] = p
	}
	return inputs, prompts, nil
}

// Label returns exactly one annotation per row, in row order. Model and
// parse failures are reported on the annotations; only configuration errors
// are returned.
func (l *Labeler) Label(ctx context.Context, rows []Row, examples []Row, optFns ...func(*Options)) ([]*LLMAnnotation, error) {
	opts := l.options(optFns)
	if l.invoker == nil {
		return nil, fmt.Errorf("%w: no invoker configured", ErrInvalidConfig)
	}

	inputs, prompts, err := l.buildPrompts(rows, l.seeds(examples), &opts)
	if err != nil {
		return nil, err
	}
	schemas := make([]*jsonschema.Schema, len(prompts))
	compiled := schemaSet{}
	for i, p := range prompts {
		if schemas[i], err = compiled.compile(p.Schema); err != nil {
			return nil, fmt.Errorf("output schema for row %d: %w", i, err)
		}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	run := opts.Runner
	if run == nil {
		run = DefaultRunner(ctx)
	}

	anns := make([]*LLMAnnotation, len(rows))
	for i := range rows {
		i := i
		run.Go(func() error {
			anns[i] = l.labelOne(ctx, inputs[i], prompts[i], schemas[i], &opts, limiter)
			return nil
		})
	}
	if err := run.Wait(); err != nil {
		l.log.Warn("labeling runner stopped early", "error", err)
	}

	for i, a := range anns {
		if a == nil {
			cause := ctx.Err()
			if cause == nil {
				cause = errors.New("row was not scheduled")
			}
			anns[i] = l.task.providerFailure(inputs[i], prompts[i].String(), cause)
		}
	}
	l.log.Debug("labeling complete", "rows", len(rows))
	return anns, nil
}

func (l *Labeler) labelOne(ctx context.Context, row Row, p *Prompt, schema *jsonschema.Schema, opts *Options, limiter *rate.Limiter) *LLMAnnotation {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return l.task.providerFailure(row, p.String(), err)
		}
	}

	var raw []byte
	call := func() error {
		callCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		b, err := l.generate(callCtx, Model(opts.Model), p)
		if err != nil {
			return err
		}
		raw = b
		return nil
	}
	if err := retryable(ctx, call, opts.MaxRetries, opts.Backoff, l.log); err != nil {
		l.log.Error("model call failed", "model", opts.Model, "error", err)
		return l.task.providerFailure(row, p.String(), err)
	}

	ann := l.task.ParseResponse(Response{Text: string(raw)}, row, p.String(), opts.SelectedLabels)
	if ann.SuccessfullyLabeled && schema != nil {
		if diags := schemaDiagnostics(schema, ann.Label); len(diags) > 0 {
			l.log.Warn("label does not conform to the output schema",
				"annotation", ann.ID, "violations", len(diags), "first", diags[0].Violation)
			ann.Diagnostics = append(ann.Diagnostics, diags...)
		}
	}
	return ann
}

func (l *Labeler) generate(ctx context.Context, model Model, p *Prompt) ([]byte, error) {
	if si, ok := l.invoker.(SchemaInvoker); ok && p.Schema != nil {
		return si.GenerateWithSchema(ctx, model, p.Text, p.Images, p.Schema)
	}
	return l.invoker.Generate(ctx, model, p.Text, p.Images)
}

// providerFailure is the annotation of a row whose model call failed.
func (t *Task) providerFailure(row Row, prompt string, err error) *LLMAnnotation {
	return &LLMAnnotation{
		ID:         uuid.NewString(),
		Label:      map[string]LabelValue{},
		Prompt:     prompt,
		CurrSample: snapshotRow(row),
		Error:      &LabelingError{Type: ErrorTypeLLMProvider, Message: err.Error()},
	}
}

// DryRun builds every prompt without calling the model and estimates the
// token usage and cost of the run.
func (l *Labeler) DryRun(ctx context.Context, rows []Row, examples []Row, optFns ...func(*Options)) (*ExecutionStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := l.options(optFns)
	seeds := l.seeds(examples)
	_, prompts, err := l.buildPrompts(rows, seeds, &opts)
	if err != nil {
		return nil, fmt.Errorf("dry run: %w", err)
	}

	counter := opts.TokenCounter
	if counter == nil {
		counter = EstimateTokensFromText
	}
	stats := &ExecutionStats{
		PromptCalls:  len(prompts),
		ModelCalls:   map[string]int{},
		SeedExamples: len(seeds),
	}
	perCallOutput := estimateOutputTokens(len(l.task.cfg.Attributes))
	for _, p := range prompts {
		stats.ModelCalls[opts.Model]++
		stats.TotalInputTokens += counter(p.Text)
		stats.TotalOutputTokens += perCallOutput
		if p.OverBudget {
			stats.OverBudgetPrompts++
		}
	}
	stats.EstimatedCost = EstimateCost(opts.Model, stats.TotalInputTokens, stats.TotalOutputTokens, nil)

	l.log.Debug("dry run complete",
		"prompt_calls", stats.PromptCalls,
		"input_tokens", stats.TotalInputTokens,
		"output_tokens", stats.TotalOutputTokens)
	return stats, nil
}

// estimateOutputTokens guesses the size of a JSON answer with n keys.
func estimateOutputTokens(n int) int {
	return 4 + 12*n
}
