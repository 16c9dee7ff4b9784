package domain

import (
	"context"
	"fmt"
)

// ImagePayload is an image ready to be embedded in a model request
type ImagePayload struct {
	MIMESubtype string
	Base64      string
}

// DataURL renders the payload as a data URL
func (p ImagePayload) DataURL() string {
	return fmt.Sprintf("data:image/%s;base64,%s", p.MIMESubtype, p.Base64)
}

// TextModel sends one prompt, optionally with an image, to a chat completion endpoint
type TextModel interface {
	Invoke(ctx context.Context, prompt string, image *ImagePayload) (string, error)
}

// Downloader materializes a remote image into a local temporary file
type Downloader interface {
	URLToTempFile(ctx context.Context, url, prefix string) (string, error)
}

// SidecarSuffix is appended to a generated image path to name its summary file
const SidecarSuffix = ".txt"

// SidecarPath returns the summary file path for a generated image
func SidecarPath(imagePath string) string {
	return imagePath + SidecarSuffix
}
