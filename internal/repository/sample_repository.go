package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Sample is a bundled example image offered in the sample picker
type Sample struct {
	Label string
	Path  string
}

// SampleRepository lists the sample images in a directory. The listing is
// cached until Refresh is called. A file keeps its label across refreshes.
type SampleRepository struct {
	dir string

	mu      sync.RWMutex
	samples []Sample
	labels  map[string]string
	next    int
}

// NewSampleRepository creates a new sample repository and performs the first scan
func NewSampleRepository(dir string) (*SampleRepository, error) {
	r := &SampleRepository{dir: dir, labels: make(map[string]string), next: 1}
	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh rescans the samples directory. A missing directory yields no samples.
func (r *SampleRepository) Refresh() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read samples dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, "jpg") || strings.HasSuffix(lower, "jpeg") || strings.HasSuffix(lower, "png") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	r.mu.Lock()
	defer r.mu.Unlock()

	// labels of removed files are never reused
	samples := make([]Sample, 0, len(names))
	for _, name := range names {
		label, ok := r.labels[name]
		if !ok {
			label = fmt.Sprintf("sample %d", r.next)
			r.next++
			r.labels[name] = label
		}
		samples = append(samples, Sample{Label: label, Path: filepath.Join(r.dir, name)})
	}
	r.samples = samples
	return nil
}

// List returns the current samples
func (r *SampleRepository) List() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Get returns the sample with the given label
func (r *SampleRepository) Get(label string) (Sample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.samples {
		if s.Label == label {
			return s, true
		}
	}
	return Sample{}, false
}
