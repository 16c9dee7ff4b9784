package prompts

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadRereadsTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.prompt.txt")
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(dir)

	got, err := l.Load("a.prompt.txt")
	if err != nil || got != "first" {
		t.Fatalf("expected %q, got %q (%v)", "first", got, err)
	}

	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = l.Load("a.prompt.txt")
	if err != nil || got != "second" {
		t.Fatalf("expected %q, got %q (%v)", "second", got, err)
	}
}

func TestLoadRejectsPaths(t *testing.T) {
	l := NewLoader(t.TempDir())
	for _, name := range []string{"", "../secret", "sub/a.txt"} {
		if _, err := l.Load(name); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}

func TestManifestDefault(t *testing.T) {
	m, err := NewLoader(t.TempDir()).Manifest()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m, DefaultManifest) {
		t.Fatalf("expected default manifest, got %+v", m)
	}
}

func TestManifestFromYAML(t *testing.T) {
	dir := t.TempDir()
	data := "generate:\n  - watercolor.prompt.txt\n  - ink.prompt.txt\n"
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewLoader(dir).Manifest()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"watercolor.prompt.txt", "ink.prompt.txt"}
	if !reflect.DeepEqual(m.Generate, want) {
		t.Fatalf("expected %v, got %v", want, m.Generate)
	}
	if m.Describe != DefaultManifest.Describe {
		t.Fatalf("describe should keep its default, got %q", m.Describe)
	}
}

func TestManifestWithoutGeneratePrompts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte("describe: d.txt\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader(dir).Manifest(); err == nil {
		t.Fatal("expected error for empty generate list")
	}
}
