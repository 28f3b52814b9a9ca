package attrs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float32Ptr(f float32) *float32 { return &f }

func TestGenerationParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  GenerationParams
		wantErr string
	}{
		{"zero", GenerationParams{}, ""},
		{"valid", GenerationParams{Temperature: float32Ptr(0.2), TopK: float32Ptr(40), TopP: float32Ptr(0.9), MaxOutputTokens: 512}, ""},
		{"temperature", GenerationParams{Temperature: float32Ptr(2.5)}, "temperature"},
		{"topK", GenerationParams{TopK: float32Ptr(0)}, "topK"},
		{"topP", GenerationParams{TopP: float32Ptr(1.5)}, "topP"},
		{"max tokens", GenerationParams{MaxOutputTokens: -1}, "maxOutputTokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewGenaiInvoker(t *testing.T) {
	_, err := NewGenaiInvoker(nil, GenerationParams{Temperature: float32Ptr(-1)}, nil)
	assert.Error(t, err)

	inv, err := NewGenaiInvoker(nil, GenerationParams{}, nil)
	require.NoError(t, err)
	_, err = inv.Generate(context.Background(), "", "prompt", nil)
	assert.ErrorContains(t, err, "client not initialized")
}

func TestGenaiParts(t *testing.T) {
	parts := genaiParts("prompt", []*Part{
		NewTextPart("extra"),
		NewImagePart(pngBytes, "image/png"),
		NewFilePart("gs://bucket/a.png", "image/png"),
	}, discardLogger())

	require.Len(t, parts, 4)
	assert.Equal(t, "prompt", parts[0].Text)
	assert.Equal(t, "extra", parts[1].Text)
	require.NotNil(t, parts[2].InlineData)
	assert.Equal(t, "image/png", parts[2].InlineData.MIMEType)
	assert.Equal(t, pngBytes, parts[2].InlineData.Data)
	require.NotNil(t, parts[3].FileData)
	assert.Equal(t, "gs://bucket/a.png", parts[3].FileData.FileURI)
}

func TestGenaiInvoker_ContentConfig(t *testing.T) {
	inv, err := NewGenaiInvoker(nil, GenerationParams{Temperature: float32Ptr(0.1)}, discardLogger())
	require.NoError(t, err)

	plain := inv.contentConfig(nil)
	assert.Equal(t, "application/json", plain.ResponseMIMEType)
	assert.Nil(t, plain.ResponseJsonSchema)
	assert.Equal(t, float32Ptr(0.1), plain.Temperature)

	aj, err := BuildAttributeJSON(productConfig().Attributes, nil, nil)
	require.NoError(t, err)
	withSchema := inv.contentConfig(aj.Schema)
	assert.Same(t, aj.Schema, withSchema.ResponseJsonSchema)
}
