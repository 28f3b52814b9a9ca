package attrs

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// TaskType is the kind of output expected for one attribute.
type TaskType string

const (
	TaskClassification           TaskType = "classification"
	TaskMultilabelClassification TaskType = "multilabel_classification"
	TaskFreeForm                 TaskType = "free_form"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// AttributeDefinition declares one attribute the model must extract.
type AttributeDefinition struct {
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Description string   `json:"description" yaml:"description" validate:"required"`
	TaskType    TaskType `json:"task_type,omitempty" yaml:"task_type" validate:"omitempty,oneof=classification multilabel_classification free_form"`
	Options     []string `json:"options,omitempty" yaml:"options"`
	// OptionsDesc maps an option to its description. Nil descriptions are
	// skipped when the prompt is rendered.
	OptionsDesc map[string]*string `json:"options_desc,omitempty" yaml:"options_desc"`
	// Schema is a relaxed-JSON schema fragment that replaces the derived one.
	Schema string `json:"schema,omitempty" yaml:"schema"`
}

// Validate checks the mandatory fields.
func (a *AttributeDefinition) Validate() error {
	if err := validate.Struct(a); err != nil {
		name := a.Name
		if name == "" {
			name = "<unnamed>"
		}
		return fmt.Errorf("%w %s: %w", ErrInvalidAttribute, name, err)
	}
	return nil
}

// IsClassification reports whether the attribute takes exactly one option.
// An attribute without a task type but with static options is a
// classification.
func (a *AttributeDefinition) IsClassification() bool {
	return a.TaskType == TaskClassification || (a.TaskType == "" && len(a.Options) > 0)
}

// IsMultilabel reports whether the attribute takes a separator-joined option list.
func (a *AttributeDefinition) IsMultilabel() bool { return a.TaskType == TaskMultilabelClassification }

// effectiveOptions resolves the admissible labels: a selected-labels entry
// wins over the static option list.
func (a *AttributeDefinition) effectiveOptions(selected map[string][]string) []string {
	if selected != nil {
		if labels, ok := selected[a.Name]; ok {
			return labels
		}
	}
	return a.Options
}

// StringPtr is a convenience for building OptionsDesc literals.
func StringPtr(s string) *string { return &s }
