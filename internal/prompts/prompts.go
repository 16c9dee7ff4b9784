package prompts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the manifest inside the prompts directory
const ManifestFile = "manifest.yaml"

// Manifest names the template files used by the flow
type Manifest struct {
	Describe  string   `yaml:"describe"`
	Summarize string   `yaml:"summarize"`
	Generate  []string `yaml:"generate"`
}

// DefaultManifest is used when the prompts directory carries no manifest
var DefaultManifest = Manifest{
	Describe:  "describe_landscape.prompt.txt",
	Summarize: "summarize_landscape.prompt.txt",
	Generate:  []string{"generate_image.prompt.txt"},
}

// Loader reads prompt templates from a directory. Templates are re-read on every
// call so edits take effect without a restart.
type Loader struct {
	dir string
}

// NewLoader creates a new prompt loader rooted at dir
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load returns the contents of the named template
func (l *Loader) Load(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid prompt name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return string(data), nil
}

// Manifest reads manifest.yaml, falling back to DefaultManifest when it does not exist
func (l *Loader) Manifest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return DefaultManifest, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read prompt manifest: %w", err)
	}

	m := DefaultManifest
	m.Generate = nil
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse prompt manifest: %w", err)
	}
	if len(m.Generate) == 0 {
		return Manifest{}, fmt.Errorf("prompt manifest lists no generate prompts")
	}
	return m, nil
}
