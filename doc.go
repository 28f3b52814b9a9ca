// Package attrs extracts named, typed attributes from unstructured text with
// a large language model. It builds the prompt, parses the model's free-form
// answer back into attribute values, checks them against the configured
// option sets, and scores batches of answers against ground truth.
//
// # Problem Statement
//
// Model output is not guaranteed to be JSON. Answers arrive wrapped in
// markdown fences, surrounded by prose, with comments, trailing commas or raw
// newlines inside strings, and with labels the task never offered. A
// labeling run over thousands of rows must still yield one result per row.
//
// The attrs package provides:
//
//   - Attribute schemas: a prompt description block and a JSON schema per call
//   - Prompt assembly: guidelines, few-shot examples, token budget trimming
//   - Tolerant parsing: fence stripping, then brace extraction, on relaxed JSON
//   - Option filtering: single and multi-label values outside the options are removed
//   - Evaluation: per-attribute and macro metrics, xlsx export
//
// # Basic Usage
//
// Describe the attributes in a task configuration and label rows:
//
//	cfg := &attrs.Config{
//	    ExampleTemplate: "Text: {text}\nOutput: {output_dict}",
//	    Attributes: []attrs.AttributeDefinition{
//	        {Name: "sentiment", Description: "Overall tone", TaskType: attrs.TaskClassification,
//	            Options: []string{"positive", "negative"}},
//	        {Name: "topics", Description: "Topics mentioned", TaskType: attrs.TaskMultilabelClassification,
//	            Options: []string{"price", "quality", "delivery"}},
//	    },
//	}
//	task, err := attrs.NewTask(cfg)
//	labeler := attrs.NewLabeler(task, invoker)
//	anns, err := labeler.Label(ctx, rows, nil, attrs.WithModel("gemini-2.0-flash"))
//
// Label returns exactly len(rows) annotations. Rows whose answer could not be
// parsed carry an INVALID_LLM_RESPONSE_ERROR; rows whose model call failed
// carry an LLM_PROVIDER_ERROR.
//
// # Prompts and Parsing Without a Labeler
//
//	p, err := task.ConstructPrompt(row, examples,
//	    attrs.PromptMaxTokens(4096, nil),
//	    attrs.PromptSelectedLabels(vocab))
//	ann := task.ParseResponse(attrs.Response{Text: completion}, row, p.String(), vocab)
//
// A value outside the options is dropped from the label and reported in
// ann.Diagnostics; the annotation stays successfully labeled.
//
// # Struct Tags
//
// AttributesOf derives definitions from a struct and DecodeLabel fills one:
//
//	type Review struct {
//	    Sentiment string   `json:"sentiment" desc:"Overall tone" options:"positive,negative"`
//	    Topics    []string `json:"topics" attr:"multilabel_classification" desc:"Topics" options:"price,quality"`
//	}
//
// # Evaluation
//
//	results := task.Eval(anns, map[string][]string{"sentiment": truth})
//	err := attrs.ExportReport("report.xlsx", results, anns)
//
// Results are named "<attribute>:<metric>" followed by "Macro:<metric>".
package attrs
