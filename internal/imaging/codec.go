package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/basel-ax/biomio/internal/domain"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const downloadChunkSize = 32 * 1024

// extensionFormats maps file extensions to image format names when the
// decoder cannot identify the data.
var extensionFormats = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".bmp":  "bmp",
	".gif":  "gif",
	".tiff": "tiff",
	".webp": "webp",
}

// Codec converts local and remote images into base64 payloads or local temp files
type Codec struct {
	httpClient *http.Client
	tempDir    string
}

// NewCodec creates a new codec writing temp files into tempDir ("" means os.TempDir)
func NewCodec(tempDir string, timeout time.Duration) *Codec {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Codec{
		httpClient: &http.Client{Timeout: timeout},
		tempDir:    tempDir,
	}
}

// FileToBase64 reads an image file and returns its format and base64 payload
func FileToBase64(path string) (domain.ImagePayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ImagePayload{}, fmt.Errorf("failed to read image: %w", err)
	}

	format := formatFromExtension(path)
	if _, decoded, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		format = decoded
	} else if format == "" {
		return domain.ImagePayload{}, fmt.Errorf("failed to identify image %s: %w", path, err)
	}

	return domain.ImagePayload{
		MIMESubtype: format,
		Base64:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// URLToDataURL fetches a remote image and returns it re-encoded as a PNG data URL
func (c *Codec) URLToDataURL(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	img, _, err := image.Decode(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	payload := domain.ImagePayload{
		MIMESubtype: "png",
		Base64:      base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
	return payload.DataURL(), nil
}

// URLToTempFile downloads a remote image into a new temp file named prefix*.png
// and returns its path. The file is left for OS temp cleanup.
func (c *Codec) URLToTempFile(ctx context.Context, url, prefix string) (string, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	out, err := os.CreateTemp(c.tempDir, prefix+"*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()

	if _, err := io.CopyBuffer(out, body, make([]byte, downloadChunkSize)); err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return out.Name(), nil
}

func (c *Codec) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

func formatFromExtension(path string) string {
	return extensionFormats[strings.ToLower(filepath.Ext(path))]
}
