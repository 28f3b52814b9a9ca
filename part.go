package attrs

// Part is one piece of model input beyond the prompt text.
type Part struct {
	Type     string // "text", "image" or "file"
	Column   string // image column the part was built from, if any
	Text     string
	Data     []byte
	FileURI  string // remote reference (http, https, gs)
	MimeType string
}

// NewTextPart creates a new text part
func NewTextPart(text string) *Part {
	return &Part{Type: "text", Text: text}
}

// NewImagePart creates a new inline image part with data and mime type
func NewImagePart(data []byte, mimeType string) *Part {
	return &Part{Type: "image", Data: data, MimeType: mimeType}
}

// NewFilePart creates a part that references a remote file URI
func NewFilePart(fileURI, mimeType string) *Part {
	return &Part{Type: "file", FileURI: fileURI, MimeType: mimeType}
}
