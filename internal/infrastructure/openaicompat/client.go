package openaicompat

import (
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const defaultTimeout = 2 * time.Minute

// newClient builds an SDK client for an OpenAI-compatible endpoint. SDK-level
// retries are disabled; retry policy belongs to the service layer.
func newClient(apiKey, baseURL string, timeout time.Duration) openai.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}
