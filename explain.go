package attrs

import (
	"fmt"
)

const labelFormatInExplanation = " The explanation should end with - 'so, the answer is <label>.'"

const (
	excludeLabelInExplanation = " Do not repeat the output of the task - simply provide an explanation for the provided output." +
		" The provided label was generated by you in a previous step and your job now is to only provided an explanation for the output." +
		" Your job is not verify the output but instead explain why it might have been generated, even if it is incorrect." +
		" If you think the provided output is incorrect, give an explanation of why it might have been generated anyway" +
		" but don't say that the output may be incorrect or incorrectly generated.'"
)

// ExplanationPrompt asks the model to justify the output recorded in
// example[OutputDictKey]. With includeLabel the explanation must end with
// the label; otherwise the model is told not to restate or doubt it.
func (t *Task) ExplanationPrompt(example Row, includeLabel bool) (string, error) {
	labelFormat := excludeLabelInExplanation
	if includeLabel {
		labelFormat = labelFormatInExplanation
	}
	labeled, _ := t.exampleTpl.ExecutePartial(example)
	return t.provider.Render(TemplateExplanation, map[string]string{
		"task_guidelines": t.taskGuidelines(),
		"label_format":    labelFormat,
		"labeled_example": labeled,
		"attribute":       example[OutputDictKey],
	})
}

// GenerateDatasetPrompt is not supported for attribute extraction.
func (t *Task) GenerateDatasetPrompt(label string, numRows int, guidelines string) (string, error) {
	return "", fmt.Errorf("dataset generation for attribute extraction: %w", ErrNotImplemented)
}
