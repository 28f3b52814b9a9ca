package attrs

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tyler-sommer/stick"
)

// Skeleton template names.
const (
	TemplateFewShot     = "few_shot"
	TemplateZeroShot    = "zero_shot"
	TemplateExplanation = "explanation"
)

const fewShotSkeleton = `{{ task_guidelines }}

{{ output_guidelines }}

Some examples with their output answers are provided below:

{{ seed_examples }}

Now I want you to label the following example:
{{ current_example }}`

const zeroShotSkeleton = `{{ task_guidelines }}

{{ output_guidelines }}

Now I want you to label the following example:
{{ current_example }}`

const explanationSkeleton = `You are an expert at providing a well reasoned explanation for the output of a given task.

BEGIN TASK DESCRIPTION
{{ task_guidelines }}
END TASK DESCRIPTION
You will be given an input example and the output for one of the attributes. Your job is to provide an explanation for why the output for that attribute is correct for the task above.
Your explanation should be at most two sentences.{{ label_format }}
{{ labeled_example }}
Current Attribute:{{ attribute }}.
Explanation: `

// DefaultSkeletons returns the built-in prompt skeletons.
func DefaultSkeletons() map[string]string {
	return map[string]string{
		TemplateFewShot:     fewShotSkeleton,
		TemplateZeroShot:    zeroShotSkeleton,
		TemplateExplanation: explanationSkeleton,
	}
}

// → StickPromptProvider is fs-agnostic
type StickPromptProvider struct {
	env       *stick.Env
	templates map[string]string
	vars      map[string]stick.Value // shared by every render
}

// → Option pattern keeps the constructor flexible
type Option func(*StickPromptProvider) error

// WithFS loads every *.twig file found under dir in the supplied FS.
func WithFS[F fs.FS](fsys F, dir string) Option {
	return func(p *StickPromptProvider) error {
		return fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".twig") {
				return nil
			}
			content, readErr := fs.ReadFile(fsys, path)
			if readErr != nil {
				return fmt.Errorf("read %s: %w", path, readErr)
			}
			tag := strings.TrimSuffix(filepath.Base(path), ".twig")
			p.templates[tag] = string(content)
			return nil
		})
	}
}

// WithTemplates lets you inject an in-memory map.
func WithTemplates(m map[string]string) Option {
	return func(p *StickPromptProvider) error {
		for k, v := range m {
			p.templates[k] = v
		}
		return nil
	}
}

// WithVar adds a variable that will be available in all templates
func WithVar(key string, value any) Option {
	return func(p *StickPromptProvider) error {
		p.vars[key] = value
		return nil
	}
}

// NewStickPromptProvider builds a provider seeded with DefaultSkeletons.
// Options may replace any of them.
func NewStickPromptProvider(opts ...Option) (*StickPromptProvider, error) {
	p := &StickPromptProvider{
		env:       stick.New(nil),
		templates: DefaultSkeletons(),
		vars:      make(map[string]stick.Value),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddTemplate updates or inserts one template.
func (p *StickPromptProvider) AddTemplate(tag, tpl string) { p.templates[tag] = tpl }

// Has reports whether a template is registered under tag.
func (p *StickPromptProvider) Has(tag string) bool {
	_, ok := p.templates[tag]
	return ok
}

// Render executes the template registered under tag.
func (p *StickPromptProvider) Render(tag string, vars map[string]string) (string, error) {
	tpl, ok := p.templates[tag]
	if !ok {
		return "", fmt.Errorf("template %q not found", tag)
	}
	return p.execute(tag, tpl, vars)
}

// RenderSource executes an ad hoc template body with the same engine.
func (p *StickPromptProvider) RenderSource(tpl string, vars map[string]string) (string, error) {
	return p.execute("override", tpl, vars)
}

func (p *StickPromptProvider) execute(tag, tpl string, vars map[string]string) (string, error) {
	ctx := make(map[string]stick.Value, len(p.vars)+len(vars))
	for k, v := range p.vars {
		ctx[k] = v
	}
	for k, v := range vars {
		ctx[k] = v
	}
	var out strings.Builder
	if err := p.env.Execute(tpl, &out, ctx); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return out.String(), nil
}
