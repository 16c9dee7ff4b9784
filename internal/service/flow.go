package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/basel-ax/biomio/internal/domain"
)

// TempFilePrefix names downloaded generated images
const TempFilePrefix = "biomio_"

// Describer describes uploaded images and summarizes descriptions
type Describer interface {
	Describe(ctx context.Context, imagePath string) (string, error)
	Summarize(ctx context.Context, description string) (string, error)
}

// FlowConfig configures a Flow
type FlowConfig struct {
	// GeneratePrompts names one template per output slot
	GeneratePrompts []string
	// PlaceholderImage fills a slot whose prompt was rejected for policy reasons
	PlaceholderImage string
	// Pacing is the delay between successive slot emissions
	Pacing time.Duration
}

// Flow runs the describe, generate and stream pipeline for one uploaded image
type Flow struct {
	describer  Describer
	generator  domain.Generator
	downloader domain.Downloader
	prompts    PromptSource
	journal    domain.Journal
	config     FlowConfig
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewFlow creates a new orchestration flow. journal may be nil.
func NewFlow(describer Describer, generator domain.Generator, downloader domain.Downloader, prompts PromptSource, journal domain.Journal, cfg FlowConfig) *Flow {
	return &Flow{
		describer:  describer,
		generator:  generator,
		downloader: downloader,
		prompts:    prompts,
		journal:    journal,
		config:     cfg,
		sleep:      sleepContext,
	}
}

// Slots returns the number of output slots
func (f *Flow) Slots() int {
	return len(f.config.GeneratePrompts)
}

type taskResult struct {
	index int
	image string
	err   error
}

// Run processes imagePath and calls emit for every stage change and every filled
// slot. Slots are filled in completion order; a slot keeps the index of the
// prompt that produced it. Once ctx is cancelled no further slot updates are
// emitted and Run returns ctx.Err().
func (f *Flow) Run(ctx context.Context, imagePath string, emit func(domain.Update)) error {
	slots := make(domain.SlotSet, f.Slots())
	report := func(stage domain.Stage, index int) {
		emit(domain.Update{Stage: stage, Slots: slots.Clone(), Index: index})
	}

	if imagePath == "" {
		report(domain.StageDone, -1)
		return nil
	}

	report(domain.StageDescribing, -1)
	desc, err := f.describer.Describe(ctx, imagePath)
	if err != nil {
		if ctx.Err() != nil {
			report(domain.StageCancelled, -1)
			return ctx.Err()
		}
		return fmt.Errorf("failed to describe upload: %w", err)
	}
	if !IsLandscape(desc) {
		log.Printf("[FLOW] %s is not a landscape", imagePath)
		report(domain.StageRejected, -1)
		return nil
	}

	report(domain.StageGenerating, -1)
	results := make(chan taskResult, len(f.config.GeneratePrompts))
	for i, name := range f.config.GeneratePrompts {
		go func(i int, name string) {
			image, err := f.generateAndStore(ctx, i, name, desc)
			results <- taskResult{index: i, image: image, err: err}
		}(i, name)
	}

	for completed := 1; completed <= len(f.config.GeneratePrompts); completed++ {
		var res taskResult
		select {
		case <-ctx.Done():
			report(domain.StageCancelled, -1)
			return ctx.Err()
		case res = <-results:
		}

		if res.err != nil {
			log.Printf("[FLOW] slot %d failed: %v", res.index, res.err)
		} else {
			slots[res.index] = res.image
		}
		if ctx.Err() != nil {
			report(domain.StageCancelled, -1)
			return ctx.Err()
		}
		report(domain.StageStreaming, res.index)

		if completed < len(f.config.GeneratePrompts) {
			if err := f.sleep(ctx, f.config.Pacing); err != nil {
				report(domain.StageCancelled, -1)
				return err
			}
		}
	}

	report(domain.StageDone, -1)
	return nil
}

// generateAndStore runs one fan-out task: build the prompt, generate, download,
// and write the summary sidecar. A policy rejection yields the placeholder image.
func (f *Flow) generateAndStore(ctx context.Context, index int, promptName, desc string) (string, error) {
	template, err := f.prompts.Load(promptName)
	if err != nil {
		f.record(ctx, domain.GenerationRecord{PromptIndex: index, Status: domain.StatusFailed, Message: err.Error()})
		return "", err
	}
	prompt := strings.TrimSpace(template + desc)

	url, err := f.generator.Generate(ctx, prompt)
	if err != nil {
		var cpv *domain.ContentPolicyViolationError
		if errors.As(err, &cpv) {
			log.Printf("[FLOW] ContentPolicyViolation for prompt=%q: %v", cpv.Prompt, cpv)
			f.record(ctx, domain.GenerationRecord{PromptIndex: index, Prompt: cpv.Prompt, ImageFile: f.config.PlaceholderImage, Status: domain.StatusContentPolicyViolation, Message: cpv.Message})
			return f.config.PlaceholderImage, nil
		}
		f.record(ctx, domain.GenerationRecord{PromptIndex: index, Prompt: prompt, Status: domain.StatusFailed, Message: err.Error()})
		return "", err
	}

	imageFile, err := f.downloader.URLToTempFile(ctx, url, TempFilePrefix)
	if err != nil {
		f.record(ctx, domain.GenerationRecord{PromptIndex: index, Prompt: prompt, ImageURL: url, Status: domain.StatusFailed, Message: err.Error()})
		return "", err
	}

	summary, err := f.describer.Summarize(ctx, desc)
	if err != nil {
		log.Printf("[FLOW] summary for slot %d unavailable: %v", index, err)
		summary = ""
	}
	if err := os.WriteFile(domain.SidecarPath(imageFile), []byte(summary), 0o644); err != nil {
		log.Printf("[FLOW] failed to write summary for %s: %v", imageFile, err)
	}

	f.record(ctx, domain.GenerationRecord{PromptIndex: index, Prompt: prompt, ImageURL: url, ImageFile: imageFile, Status: domain.StatusGenerated})
	return imageFile, nil
}

func (f *Flow) record(ctx context.Context, rec domain.GenerationRecord) {
	if f.journal == nil {
		return
	}
	if err := f.journal.Record(ctx, rec); err != nil {
		log.Printf("[FLOW] failed to journal slot %d: %v", rec.PromptIndex, err)
	}
}
