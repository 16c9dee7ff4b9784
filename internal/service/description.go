package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/basel-ax/biomio/internal/domain"
	"github.com/basel-ax/biomio/internal/imaging"
)

// NotALandscapePhrase marks a description of an image that should not be processed
const NotALandscapePhrase = "not a landscape"

// PromptSource loads prompt templates by name
type PromptSource interface {
	Load(name string) (string, error)
}

// DescriptionService turns images into descriptions and descriptions into summaries
type DescriptionService struct {
	model           domain.TextModel
	prompts         PromptSource
	describePrompt  string
	summarizePrompt string
}

// NewDescriptionService creates a new description service
func NewDescriptionService(model domain.TextModel, prompts PromptSource, describePrompt, summarizePrompt string) *DescriptionService {
	return &DescriptionService{
		model:           model,
		prompts:         prompts,
		describePrompt:  describePrompt,
		summarizePrompt: summarizePrompt,
	}
}

// Describe asks the vision model to describe the image at imagePath
func (s *DescriptionService) Describe(ctx context.Context, imagePath string) (string, error) {
	payload, err := imaging.FileToBase64(imagePath)
	if err != nil {
		return "", err
	}
	prompt, err := s.prompts.Load(s.describePrompt)
	if err != nil {
		return "", err
	}
	desc, err := s.model.Invoke(ctx, prompt, &payload)
	if err != nil {
		return "", fmt.Errorf("failed to describe image: %w", err)
	}
	return desc, nil
}

// Summarize asks the text model for a short summary of a description
func (s *DescriptionService) Summarize(ctx context.Context, description string) (string, error) {
	prompt, err := s.prompts.Load(s.summarizePrompt)
	if err != nil {
		return "", err
	}
	return s.model.Invoke(ctx, prompt+" "+description, nil)
}

// IsLandscape reports whether a description was accepted by the vision model
func IsLandscape(description string) bool {
	return !strings.Contains(strings.ToLower(description), NotALandscapePhrase)
}
