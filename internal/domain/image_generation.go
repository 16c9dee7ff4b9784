package domain

import (
	"context"
	"errors"
)

// ErrRateLimited is returned by an ImageGenerator when the provider throttles the request
var ErrRateLimited = errors.New("image generation rate limited")

// ContentPolicyViolationError is returned when the provider rejects a prompt for policy reasons.
// Prompt is exactly the string that was submitted.
type ContentPolicyViolationError struct {
	Message string
	Prompt  string
}

func (e *ContentPolicyViolationError) Error() string {
	return "content policy violation: " + e.Message
}

// ImageGenerator issues a single image generation request and returns the remote image URL
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Generator generates an image for a prompt, applying truncation and retry policy
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationStatus is the outcome of one fan-out task
type GenerationStatus string

const (
	StatusGenerated              GenerationStatus = "Generated"
	StatusContentPolicyViolation GenerationStatus = "ContentPolicyViolation"
	StatusFailed                 GenerationStatus = "Failed"
)

// GenerationRecord describes the outcome of one fan-out task
type GenerationRecord struct {
	ID          int
	PromptIndex int
	Prompt      string
	ImageURL    string
	ImageFile   string
	Status      GenerationStatus
	Message     string
}

// Journal records fan-out task outcomes
type Journal interface {
	Record(ctx context.Context, rec GenerationRecord) error
}
