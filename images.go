package attrs

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var errUnsupportedImage = errors.New("unsupported image value")

// imagePart turns an image column value into a model input part. Accepted
// forms: a data URL, an http(s) or gs URI, a local file path, or raw base64.
func imagePart(column, value string) (*Part, error) {
	value = strings.TrimSpace(value)
	var part *Part
	switch {
	case strings.HasPrefix(value, "data:"):
		data, mimeType, err := decodeDataURL(value)
		if err != nil {
			return nil, err
		}
		part = NewImagePart(data, mimeType)
	case isRemoteURI(value):
		u, _ := url.Parse(value)
		part = NewFilePart(value, mimeTypeFromExt(path.Ext(u.Path)))
	case isLocalFile(value):
		data, err := os.ReadFile(value)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", value, err)
		}
		part = NewImagePart(data, getMIMETypeFromPath(value))
	default:
		data, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUnsupportedImage, err)
		}
		part = NewImagePart(data, mimetype.Detect(data).String())
	}
	part.Column = column
	return part, nil
}

// decodeDataURL decodes `data:[<mime>][;base64],<payload>`.
func decodeDataURL(s string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: malformed data URL", errUnsupportedImage)
	}
	var data []byte
	if strings.HasSuffix(meta, ";base64") {
		meta = strings.TrimSuffix(meta, ";base64")
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data URL: %w", err)
		}
		data = b
	} else {
		p, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data URL: %w", err)
		}
		data = []byte(p)
	}
	mimeType := strings.Split(meta, ";")[0]
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	return data, mimeType, nil
}

func isRemoteURI(s string) bool {
	for _, scheme := range []string{"http://", "https://", "gs://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}

func isLocalFile(s string) bool {
	if len(s) > 4096 || strings.ContainsAny(s, "\n\r") {
		return false
	}
	fi, err := os.Stat(s)
	return err == nil && fi.Mode().IsRegular()
}

// getMIMETypeFromPath detects the MIME type from file content, falling back
// to the extension.
func getMIMETypeFromPath(p string) string {
	mtype, err := mimetype.DetectFile(p)
	if err == nil {
		return mtype.String()
	}
	return mimeTypeFromExt(filepath.Ext(p))
}

func mimeTypeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".bmp":
		return "image/bmp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
