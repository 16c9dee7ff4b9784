package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/basel-ax/biomio/internal/config"
	"github.com/basel-ax/biomio/internal/domain"
)

// Backoff computes the wait before each retry of a rate-limited request
type Backoff struct {
	Min time.Duration
	Max time.Duration
	// MaxAttempts bounds the total number of calls; 0 means retry forever
	MaxAttempts int
}

// NewBackoff derives the backoff policy from the image generation config
func NewBackoff(cfg config.ImageGenConfig) Backoff {
	return Backoff{
		Min:         cfg.MinRetryWait(),
		Max:         cfg.MaxWait,
		MaxAttempts: cfg.MaxAttempts,
	}
}

// Delay returns the wait after the given failed attempt (1-based): 2^(attempt-1)
// seconds capped at Max, then raised to Min. Min wins over a smaller Max. A zero
// Max leaves the wait uncapped.
func (b Backoff) Delay(attempt int) time.Duration {
	exp := attempt - 1
	if exp < 0 {
		exp = 0
	}
	// keeps the duration below int64 overflow
	if exp > 32 {
		exp = 32
	}
	wait := time.Duration(1<<uint(exp)) * time.Second
	if b.Max > 0 && wait > b.Max {
		wait = b.Max
	}
	if wait < b.Min {
		wait = b.Min
	}
	return wait
}

// TruncatePrompt cuts s to at most length characters (runes) and trims surrounding whitespace
func TruncatePrompt(s string, length int) string {
	if utf8.RuneCountInString(s) > length {
		var size, n int
		for i := 0; i < length && n < len(s); i++ {
			_, size = utf8.DecodeRuneInString(s[n:])
			n += size
		}
		s = s[:n]
	}
	return strings.TrimSpace(s)
}

// ImageGenerationService applies prompt truncation and the rate-limit retry policy
// on top of an ImageGenerator
type ImageGenerationService struct {
	client       domain.ImageGenerator
	maxPromptLen int
	backoff      Backoff
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewImageGenerationService creates a new image generation service
func NewImageGenerationService(client domain.ImageGenerator, cfg config.ImageGenConfig) *ImageGenerationService {
	return &ImageGenerationService{
		client:       client,
		maxPromptLen: cfg.MaxPromptLen,
		backoff:      NewBackoff(cfg),
		sleep:        sleepContext,
	}
}

// Generate submits the truncated prompt and returns the generated image URL.
// Rate-limited calls are retried with exponential backoff; everything else,
// including *domain.ContentPolicyViolationError, is returned as is.
func (s *ImageGenerationService) Generate(ctx context.Context, prompt string) (string, error) {
	submitted := TruncatePrompt(prompt, s.maxPromptLen)
	if utf8.RuneCountInString(prompt) > s.maxPromptLen {
		log.Printf("Using truncated prompt: %s", submitted)
	}

	for attempt := 1; ; attempt++ {
		url, err := s.client.GenerateImage(ctx, submitted)
		if err == nil {
			return url, nil
		}
		if !errors.Is(err, domain.ErrRateLimited) {
			return "", err
		}

		if s.backoff.MaxAttempts > 0 && attempt >= s.backoff.MaxAttempts {
			return "", fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		wait := s.backoff.Delay(attempt)
		log.Printf("Error generating image: %v", err)
		log.Printf("Will wait %s and retry due to rate limit error (attempt %d)...", wait, attempt)
		if err := s.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
