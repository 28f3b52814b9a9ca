package attrs

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when a call names no model.
const DefaultGeminiModel = "gemini-1.5-flash"

// GenerationParams tunes sampling. Zero values leave the provider default.
type GenerationParams struct {
	Temperature     *float32
	TopK            *float32
	TopP            *float32
	MaxOutputTokens int32
}

// Validate checks parameter ranges.
func (p GenerationParams) Validate() error {
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("temperature %v must be between 0.0 and 2.0", *p.Temperature)
	}
	if p.TopK != nil && *p.TopK <= 0 {
		return fmt.Errorf("topK %v must be greater than 0", *p.TopK)
	}
	if p.TopP != nil && (*p.TopP < 0 || *p.TopP > 1) {
		return fmt.Errorf("topP %v must be between 0.0 and 1.0", *p.TopP)
	}
	if p.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens %d must not be negative", p.MaxOutputTokens)
	}
	return nil
}

// GenaiInvoker implements Invoker with the Google GenAI SDK.
type GenaiInvoker struct {
	client *genai.Client
	params GenerationParams
	log    *slog.Logger
}

// NewGenaiInvoker wraps a genai client. A nil logger means slog.Default().
func NewGenaiInvoker(client *genai.Client, params GenerationParams, log *slog.Logger) (*GenaiInvoker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &GenaiInvoker{client: client, params: params, log: log}, nil
}

// genaiParts converts prompt text and media into genai parts.
func genaiParts(prompt string, media []*Part, log *slog.Logger) []*genai.Part {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, part := range media {
		log.Debug("Processing media part", "type", part.Type, "column", part.Column, "mime_type", part.MimeType)
		switch part.Type {
		case "text":
			parts = append(parts, genai.NewPartFromText(part.Text))
		case "image":
			parts = append(parts, genai.NewPartFromBytes(part.Data, part.MimeType))
		case "file":
			parts = append(parts, genai.NewPartFromFile(genai.File{URI: part.FileURI, MIMEType: part.MimeType}))
		}
	}
	return parts
}

func (g *GenaiInvoker) Generate(ctx context.Context, model Model, prompt string, media []*Part) ([]byte, error) {
	return g.GenerateWithSchema(ctx, model, prompt, media, nil)
}

// GenerateWithSchema sends schema as the response JSON schema when non-nil.
func (g *GenaiInvoker) GenerateWithSchema(ctx context.Context, model Model, prompt string, media []*Part, schema *OutputSchema) ([]byte, error) {
	if g.client == nil {
		return nil, fmt.Errorf("client not initialized")
	}
	modelName := string(model)
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	contents := []*genai.Content{genai.NewContentFromParts(genaiParts(prompt, media, g.log), genai.RoleUser)}
	config := g.contentConfig(schema)

	g.log.Debug("Generating content", "model", modelName, "prompt_length", len(prompt), "media_count", len(media))
	resp, err := g.client.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no parts in candidate content")
	}
	text := candidate.Content.Parts[0].Text
	if text == "" {
		return nil, ErrEmptyResponse
	}
	g.log.Debug("Generated content successfully", "response_length", len(text))
	return []byte(text), nil
}

func (g *GenaiInvoker) contentConfig(schema *OutputSchema) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      g.params.Temperature,
		TopK:             g.params.TopK,
		TopP:             g.params.TopP,
		MaxOutputTokens:  g.params.MaxOutputTokens,
	}
	if schema != nil {
		config.ResponseJsonSchema = schema
	}
	return config
}
