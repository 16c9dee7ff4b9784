package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/basel-ax/biomio/internal/domain"
	"github.com/openai/openai-go/v2"
)

const contentPolicyViolationCode = "content_policy_violation"

// ImageClient talks to an image generation endpoint
type ImageClient struct {
	client openai.Client
	model  string
}

// NewImageClient creates a new image generation client
func NewImageClient(apiKey, baseURL, model string, timeout time.Duration) *ImageClient {
	return &ImageClient{
		client: newClient(apiKey, baseURL, timeout),
		model:  model,
	}
}

// GenerateImage issues one generation request for prompt and returns the image URL.
// Throttling is reported as domain.ErrRateLimited and policy rejections as
// *domain.ContentPolicyViolationError; other errors are returned unchanged.
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	log.Printf("Using model: %s", c.model)

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  openai.ImageModel(c.model),
		Prompt: prompt,
	})
	if err != nil {
		return "", classify(err, prompt)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("no image returned by %s", c.model)
	}

	url := resp.Data[0].URL
	log.Println(url)
	return url, nil
}

func classify(err error, prompt string) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	case http.StatusBadRequest:
		if apiErr.Code == contentPolicyViolationCode || strings.Contains(apiErr.Error(), contentPolicyViolationCode) {
			message := apiErr.Message
			if message == "" {
				message = apiErr.Error()
			}
			return &domain.ContentPolicyViolationError{Message: message, Prompt: prompt}
		}
	}
	return err
}
