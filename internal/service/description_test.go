package service

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/basel-ax/biomio/internal/domain"
)

type recordingModel struct {
	prompt string
	image  *domain.ImagePayload
	answer string
}

func (m *recordingModel) Invoke(ctx context.Context, prompt string, image *domain.ImagePayload) (string, error) {
	m.prompt = prompt
	m.image = image
	return m.answer, nil
}

func TestDescribeSendsImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lake.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	model := &recordingModel{answer: "A calm lake."}
	svc := NewDescriptionService(model, fakePrompts{"describe.txt": "Describe this landscape."}, "describe.txt", "summarize.txt")

	got, err := svc.Describe(context.Background(), path)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if got != "A calm lake." {
		t.Fatalf("unexpected description %q", got)
	}
	if model.prompt != "Describe this landscape." {
		t.Errorf("unexpected prompt %q", model.prompt)
	}
	if model.image == nil || model.image.MIMESubtype != "png" || model.image.Base64 == "" {
		t.Errorf("expected png payload, got %+v", model.image)
	}
}

func TestSummarizeJoinsPromptAndDescription(t *testing.T) {
	model := &recordingModel{answer: "Lake at dusk."}
	svc := NewDescriptionService(model, fakePrompts{"summarize.txt": "Summarize:"}, "describe.txt", "summarize.txt")

	got, err := svc.Summarize(context.Background(), "A mountain lake at sunset.")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Lake at dusk." {
		t.Fatalf("unexpected summary %q", got)
	}
	if model.prompt != "Summarize: A mountain lake at sunset." || model.image != nil {
		t.Errorf("unexpected text request %q (image %v)", model.prompt, model.image)
	}
}

func TestIsLandscape(t *testing.T) {
	tests := map[string]bool{
		"A mountain lake at sunset.":     true,
		"This is not a landscape.":       false,
		"Sorry, NOT A LANDSCAPE photo":   false,
		"Not A Landscape":                false,
		"a landscape that is not a lake": true,
		"":                               true,
	}
	for desc, want := range tests {
		if got := IsLandscape(desc); got != want {
			t.Errorf("IsLandscape(%q) = %v, want %v", desc, got, want)
		}
	}
}
