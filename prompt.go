package attrs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// OutputDictKey holds the combined ground-truth output of a seed example.
const OutputDictKey = "output_dict"

const (
	DefaultTaskGuidelines   = "You are an expert at extracting attributes from text. Given a piece of text, extract the required attributes."
	DefaultOutputGuidelines = "You will return the extracted attributes as a json with the following keys:\n{attribute_json}. \n Do not include keys in the final JSON that don't have any valid value extracted."
)

// Task builds prompts for, and parses responses of, one attribute
// extraction configuration. A Task is safe for concurrent use.
type Task struct {
	cfg        *Config
	provider   *StickPromptProvider
	exampleTpl *Template
	log        *slog.Logger
	metrics    []Metric
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithTaskLogger sets the logger used for prompt and parse diagnostics.
func WithTaskLogger(l *slog.Logger) TaskOption {
	return func(t *Task) { t.log = l }
}

// WithPromptProvider replaces the skeleton templates.
func WithPromptProvider(p *StickPromptProvider) TaskOption {
	return func(t *Task) { t.provider = p }
}

// NewTask validates cfg and prepares its templates.
func NewTask(cfg *Config, opts ...TaskOption) (*Task, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Task{cfg: cfg}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	if t.provider == nil {
		p, err := NewStickPromptProvider()
		if err != nil {
			return nil, err
		}
		t.provider = p
	}
	tpl := cfg.ExampleTemplate
	if tpl == "" {
		tpl = defaultExampleTemplate(cfg.InputColumns)
	}
	t.exampleTpl = ParseTemplate(tpl)
	t.metrics = []Metric{SupportMetric{}, CompletionRateMetric{}, AccuracyMetric{}}
	if cfg.Confidence {
		t.metrics = append(t.metrics, AUROCMetric{})
	}
	return t, nil
}

func defaultExampleTemplate(columns []string) string {
	var b strings.Builder
	for _, c := range columns {
		fmt.Fprintf(&b, "%s: {%s}\n", c, c)
	}
	b.WriteString("Output: {" + OutputDictKey + "}")
	return b.String()
}

// Config returns the task configuration.
func (t *Task) Config() *Config { return t.cfg }

func (t *Task) taskGuidelines() string {
	if t.cfg.TaskGuidelines == "" {
		return DefaultTaskGuidelines
	}
	return t.cfg.TaskGuidelines
}

// Prompt is one assembled prompt.
type Prompt struct {
	Text    string
	Payload string  // JSON payload for multimodal tasks, else ""
	Images  []*Part // decoded image columns
	Schema  *OutputSchema

	AttributeJSON    string
	SeedExamples     int      // examples rendered into the prompt
	DroppedExamples  int      // examples without a complete output
	TrimmedExamples  int      // examples removed to fit the token budget
	MissingVariables []string // example-template variables absent from the input
	OverBudget       bool
}

// String returns what is sent to the model.
func (p *Prompt) String() string {
	if p.Payload != "" {
		return p.Payload
	}
	return p.Text
}

type promptConfig struct {
	maxTokens        int
	counter          TokenCounter
	selected         *LabelVocabulary
	selectedDesc     map[string]map[string]*string
	override         string
	outputGuidelines *string
}

// PromptOption adjusts a single ConstructPrompt call.
type PromptOption func(*promptConfig)

// PromptMaxTokens trims seed examples until counter reports at most n tokens.
// A nil counter means EstimateTokensFromText.
func PromptMaxTokens(n int, counter TokenCounter) PromptOption {
	return func(c *promptConfig) {
		c.maxTokens = n
		c.counter = counter
	}
}

// PromptSelectedLabels advertises v's labels instead of static options and,
// in few-shot mode, grows v with the examples' labels.
func PromptSelectedLabels(v *LabelVocabulary) PromptOption {
	return func(c *promptConfig) { c.selected = v }
}

func PromptSelectedLabelsDesc(desc map[string]map[string]*string) PromptOption {
	return func(c *promptConfig) { c.selectedDesc = desc }
}

// PromptTemplate replaces the skeleton with a twig template. The template
// sees task_guidelines, output_guidelines, seed_examples and current_example.
func PromptTemplate(tpl string) PromptOption {
	return func(c *promptConfig) { c.override = tpl }
}

func PromptOutputGuidelines(s string) PromptOption {
	return func(c *promptConfig) { c.outputGuidelines = &s }
}

// ConstructPrompt assembles the prompt for input. It sets input[OutputDictKey]
// to "" and, in few-shot mode, grows the selected-labels vocabulary.
func (t *Task) ConstructPrompt(input Row, examples []Row, opts ...PromptOption) (*Prompt, error) {
	var pc promptConfig
	for _, opt := range opts {
		opt(&pc)
	}
	if pc.counter == nil {
		pc.counter = EstimateTokensFromText
	}
	fewShot := t.cfg.IsFewShot()

	if fewShot && pc.selected != nil {
		if n := pc.selected.Grow(t.cfg.Attributes, examples, t.cfg.separator()); n > 0 {
			t.log.Debug("grew label vocabulary from examples", "added", n)
		}
	}

	aj, err := BuildAttributeJSON(t.cfg.Attributes, pc.selected.Snapshot(), pc.selectedDesc)
	if err != nil {
		return nil, err
	}

	guidelines := t.cfg.OutputGuidelines
	if guidelines == "" {
		guidelines = DefaultOutputGuidelines
	}
	if pc.outputGuidelines != nil {
		guidelines = *pc.outputGuidelines
	}
	fmtGuidelines, _ := ParseTemplate(guidelines).ExecutePartial(map[string]string{"attribute_json": aj.Text})

	p := &Prompt{Schema: aj.Schema, AttributeJSON: aj.Text}

	var seeds []string
	if fewShot {
		for _, eg := range examples {
			vars := map[string]string(eg)
			if _, ok := eg[OutputDictKey]; !ok {
				out, ok := t.outputDict(eg)
				if !ok {
					p.DroppedExamples++
					continue
				}
				vars = eg.Clone()
				vars[OutputDictKey] = out
			}
			text, _ := t.exampleTpl.ExecutePartial(vars)
			seeds = append(seeds, text)
		}
	}

	if input == nil {
		input = Row{}
	}
	input[OutputDictKey] = ""
	current, err := t.exampleTpl.Execute(input)
	if errors.Is(err, ErrMissingVariable) {
		current, p.MissingVariables = t.exampleTpl.ExecutePartial(input)
		t.log.Warn("example template variables missing from input, substituting empty strings",
			"missing", p.MissingVariables, "template", t.exampleTpl.Source())
	}

	vars := map[string]string{
		"task_guidelines":   t.taskGuidelines(),
		"output_guidelines": fmtGuidelines,
		"current_example":   current,
	}
	p.Text, p.SeedExamples, err = t.trimPrompt(&pc, fewShot, vars, seeds)
	if err != nil {
		return nil, err
	}
	p.TrimmedExamples = len(seeds) - p.SeedExamples
	if pc.maxTokens > 0 && pc.counter(p.Text) > pc.maxTokens {
		p.OverBudget = true
		t.log.Warn("prompt exceeds token budget after trimming all seed examples",
			"tokens", pc.counter(p.Text), "max_tokens", pc.maxTokens)
	}

	if len(t.cfg.ImageColumns) > 0 {
		if err := t.attachImages(p, input); err != nil {
			return nil, err
		}
	}

	t.log.Debug("constructed prompt",
		"prompt_length", len(p.Text),
		"seed_examples", p.SeedExamples,
		"dropped_examples", p.DroppedExamples,
		"trimmed_examples", p.TrimmedExamples)
	return p, nil
}

// trimPrompt renders the skeleton, dropping seed examples from the tail
// until the prompt fits. It returns the prompt and the examples kept.
func (t *Task) trimPrompt(pc *promptConfig, fewShot bool, vars map[string]string, seeds []string) (string, int, error) {
	render := func(n int) (string, error) {
		vars["seed_examples"] = strings.Join(seeds[:n], "\n\n")
		if pc.override != "" {
			return t.provider.RenderSource(pc.override, vars)
		}
		tag := TemplateZeroShot
		if fewShot {
			tag = TemplateFewShot
		}
		return t.provider.Render(tag, vars)
	}

	n := len(seeds)
	for {
		text, err := render(n)
		if err != nil {
			return "", 0, err
		}
		if pc.maxTokens <= 0 || n == 0 || pc.counter(text) <= pc.maxTokens {
			return text, n, nil
		}
		n--
	}
}

// outputDict renders the example's attribute values as a JSON object in
// attribute order. It reports false when any attribute value is empty.
func (t *Task) outputDict(eg Row) (string, bool) {
	entries := make([][2]string, 0, len(t.cfg.Attributes))
	for _, a := range t.cfg.Attributes {
		v := eg[a.Name]
		if v == "" {
			t.log.Warn("example does not contain all expected output attributes, skipping",
				"missing_attribute", a.Name)
			return "", false
		}
		entries = append(entries, [2]string{a.Name, v})
	}
	out, err := inlineObject(entries)
	if err != nil {
		return "", false
	}
	return out, true
}

// PrepareExamples returns copies of examples with OutputDictKey filled in,
// dropping those that cannot demonstrate every attribute. Prepared examples
// can be shared by concurrent ConstructPrompt calls.
func (t *Task) PrepareExamples(examples []Row) []Row {
	out := make([]Row, 0, len(examples))
	for _, eg := range examples {
		c := eg.Clone()
		if _, ok := c[OutputDictKey]; !ok {
			d, ok := t.outputDict(eg)
			if !ok {
				continue
			}
			c[OutputDictKey] = d
		}
		out = append(out, c)
	}
	return out
}

// inlineObject writes entries as `{"k": "v", ...}` keeping their order.
func inlineObject(entries [][2]string) (string, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, kv := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		k, err := jsonString(kv[0])
		if err != nil {
			return "", err
		}
		v, err := jsonString(kv[1])
		if err != nil {
			return "", err
		}
		b.WriteString(k + ": " + v)
	}
	b.WriteByte('}')
	return b.String(), nil
}

func (t *Task) attachImages(p *Prompt, input Row) error {
	payload := map[string]string{"text": p.Text}
	for _, col := range t.cfg.ImageColumns {
		v := input[col]
		if v == "" {
			continue
		}
		payload[col] = v
		part, err := imagePart(col, v)
		if err != nil {
			t.log.Warn("image column could not be decoded", "column", col, "error", err)
			continue
		}
		p.Images = append(p.Images, part)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal multimodal payload: %w", err)
	}
	p.Payload = string(b)
	return nil
}
