package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/basel-ax/biomio/internal/domain"
	"github.com/basel-ax/biomio/internal/imaging"
)

// ReadSummary returns the summary stored next to a generated image in tempDir,
// or "" when there is none.
func ReadSummary(tempDir, imageFile string) string {
	if imageFile == "" {
		return ""
	}

	summaryFile := domain.SidecarPath(filepath.Join(tempDir, filepath.Base(imageFile)))
	data, err := os.ReadFile(summaryFile)
	if err != nil {
		log.Printf("Error reading %s: %v", summaryFile, err)
		return ""
	}
	return string(data)
}

// SummaryToRead returns the text to speak aloud, nothing when muted
func SummaryToRead(mute bool, summary string) string {
	if mute {
		return ""
	}
	return summary
}

// MakeCollage composes the original and generated images into a 2x2 collage in
// dir and returns its path. It returns "" when there is no original image.
func MakeCollage(dir, original, generated string) (string, error) {
	if original == "" {
		return "", nil
	}

	imagePaths := []string{original, generated, generated, original}
	collagePath := filepath.Join(dir, fmt.Sprintf("biomio_collage_%d.jpg", time.Now().UnixNano()))
	if err := imaging.CreateCollage(imagePaths, collagePath); err != nil {
		return "", err
	}
	return collagePath, nil
}
