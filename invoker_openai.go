package attrs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIInvoker implements Invoker against any OpenAI-compatible endpoint.
type OpenAIInvoker struct {
	client      *openai.Client
	temperature float32
	log         *slog.Logger
}

// NewOpenAIInvoker creates an invoker. An empty baseURL keeps the OpenAI
// default.
func NewOpenAIInvoker(apiKey, baseURL string, temperature float32, log *slog.Logger) *OpenAIInvoker {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpenAIInvoker{
		client:      openai.NewClientWithConfig(cfg),
		temperature: temperature,
		log:         log.With("provider", "openai"),
	}
}

func (o *OpenAIInvoker) Generate(ctx context.Context, model Model, prompt string, media []*Part) ([]byte, error) {
	return o.GenerateWithSchema(ctx, model, prompt, media, nil)
}

// GenerateWithSchema requests a json_schema response format when schema is
// non-nil and a plain JSON object otherwise.
func (o *OpenAIInvoker) GenerateWithSchema(ctx context.Context, model Model, prompt string, media []*Part, schema *OutputSchema) ([]byte, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(media) == 0 {
		msg.Content = prompt
	} else {
		msg.MultiContent = openaiParts(prompt, media)
	}

	format, err := responseFormat(schema)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          string(model),
		Messages:       []openai.ChatCompletionMessage{msg},
		Temperature:    o.temperature,
		ResponseFormat: format,
	})
	if err != nil {
		o.log.Error("LLM request failed", "model", string(model), "elapsed", time.Since(start), "error", err)
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, ErrEmptyResponse
	}
	o.log.Debug("LLM request completed",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed", time.Since(start))
	return []byte(content), nil
}

func responseFormat(schema *OutputSchema) (*openai.ChatCompletionResponseFormat, error) {
	if schema == nil {
		return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal output schema: %w", err)
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   "output",
			Schema: json.RawMessage(raw),
		},
	}, nil
}

func openaiParts(prompt string, media []*Part) []openai.ChatMessagePart {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	for _, p := range media {
		switch p.Type {
		case "text":
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
		case "image":
			url := "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailAuto},
			})
		case "file":
			if strings.HasPrefix(p.FileURI, "http") {
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: p.FileURI, Detail: openai.ImageURLDetailAuto},
				})
			}
		}
	}
	return parts
}
