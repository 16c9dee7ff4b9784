package service

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadSummary(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "biomio_123.png")
	if err := os.WriteFile(image+".txt", []byte("Lake at dusk."), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := ReadSummary(dir, image); got != "Lake at dusk." {
		t.Fatalf("expected summary, got %q", got)
	}
	// resolved by base name inside the temp dir
	if got := ReadSummary(dir, "/elsewhere/biomio_123.png"); got != "Lake at dusk." {
		t.Fatalf("expected summary by base name, got %q", got)
	}
	if got := ReadSummary(dir, "images/content_policy_violation.png"); got != "" {
		t.Fatalf("expected empty summary for placeholder, got %q", got)
	}
	if got := ReadSummary(dir, ""); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}

func TestSummaryToRead(t *testing.T) {
	if got := SummaryToRead(true, "hello"); got != "" {
		t.Errorf("muted summary should be empty, got %q", got)
	}
	if got := SummaryToRead(false, "hello"); got != "hello" {
		t.Errorf("expected summary, got %q", got)
	}
}

func TestMakeCollage(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, w, h int) string {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
			t.Fatal(err)
		}
		return path
	}
	original := write("original.png", 30, 20)
	generated := write("generated.png", 64, 64)

	out := filepath.Join(dir, "collages")
	path, err := MakeCollage(out, original, generated)
	if err != nil {
		t.Fatalf("MakeCollage: %v", err)
	}
	if filepath.Dir(path) != out || !strings.HasPrefix(filepath.Base(path), "biomio_collage_") || filepath.Ext(path) != ".jpg" {
		t.Fatalf("unexpected collage path %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 60 || cfg.Height != 40 {
		t.Fatalf("expected 4 panes of 30x20, got %dx%d", cfg.Width, cfg.Height)
	}

	// a missing generated image is skipped
	path, err = MakeCollage(out, original, "")
	if err != nil {
		t.Fatalf("MakeCollage: %v", err)
	}
	if path == "" {
		t.Fatal("expected collage path")
	}

	if path, err := MakeCollage(out, "", generated); err != nil || path != "" {
		t.Fatalf("expected no collage without original, got %q (%v)", path, err)
	}
}
