package attrs

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestImagePart(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(pngBytes)
	local := filepath.Join(t.TempDir(), "photo.bin")
	require.NoError(t, os.WriteFile(local, pngBytes, 0o600))

	tests := []struct {
		name     string
		value    string
		typ      string
		mimeType string
	}{
		{"data URL", "data:image/png;base64," + b64, "image", "image/png"},
		{"data URL without mime", "data:;base64," + b64, "image", "image/png"},
		{"gs uri", "gs://bucket/items/shirt.JPG", "file", "image/jpeg"},
		{"https uri with query", "https://cdn.example.com/a/b.webp?size=large", "file", "image/webp"},
		{"unknown extension", "https://cdn.example.com/image", "file", "application/octet-stream"},
		{"local file", local, "image", "image/png"},
		{"raw base64", b64, "image", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part, err := imagePart("photo", tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, part.Type)
			assert.Equal(t, tt.mimeType, part.MimeType)
			assert.Equal(t, "photo", part.Column)
			if tt.typ == "image" {
				assert.Equal(t, pngBytes, part.Data)
			} else {
				assert.Equal(t, tt.value, part.FileURI)
			}
		})
	}
}

func TestImagePart_PercentEncodedDataURL(t *testing.T) {
	part, err := imagePart("note", "data:text/plain,hello%20world")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), part.Data)
	assert.Equal(t, "text/plain", part.MimeType)
}

func TestImagePart_Errors(t *testing.T) {
	_, err := imagePart("photo", "not an image!")
	assert.ErrorIs(t, err, errUnsupportedImage)

	_, err = imagePart("photo", "data:image/png;base64")
	assert.ErrorIs(t, err, errUnsupportedImage)

	_, err = imagePart("photo", "data:image/png;base64,@@@")
	assert.Error(t, err)
}

func TestConstructPrompt_UndecodableImageIsSkipped(t *testing.T) {
	cfg := productConfig()
	cfg.ImageColumns = []string{"photo"}
	task := newTestTask(t, cfg)

	p, err := task.ConstructPrompt(Row{"text": "x", "photo": "not an image!"}, nil)
	require.NoError(t, err)
	assert.Empty(t, p.Images)
	assert.Contains(t, p.Payload, `"photo":"not an image!"`)
}
