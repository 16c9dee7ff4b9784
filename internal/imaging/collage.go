package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const collageColumns = 2

// ErrNoImages is returned when a collage is requested without any source image
var ErrNoImages = errors.New("no images for collage")

// CreateCollage lays out the non-empty paths left-to-right, top-to-bottom in a
// 2-column grid and writes the result to outputPath. The first image fixes the
// pane size; every other image is scaled (not cropped) to it.
func CreateCollage(imagePaths []string, outputPath string) error {
	images := make([]image.Image, 0, len(imagePaths))
	for _, path := range imagePaths {
		if path == "" {
			continue
		}
		img, err := decodeFile(path)
		if err != nil {
			return err
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return ErrNoImages
	}

	collage := Compose(images)

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir %s: %w", dir, err)
		}
	}
	return encodeFile(collage, outputPath)
}

// Compose builds the collage image in memory. Panes are composited over an
// opaque black background, so the result carries no transparency.
func Compose(images []image.Image) *image.RGBA {
	first := images[0].Bounds()
	paneW, paneH := first.Dx(), first.Dy()

	width := paneW
	if len(images) > 1 {
		width = paneW * collageColumns
	}
	rows := (len(images) + collageColumns - 1) / collageColumns
	collage := image.NewRGBA(image.Rect(0, 0, width, paneH*rows))
	draw.Draw(collage, collage.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	x, y := 0, 0
	for i, img := range images {
		pane := image.Rect(x, y, x+paneW, y+paneH)
		if i == 0 {
			draw.Draw(collage, pane, img, first.Min, draw.Over)
		} else {
			draw.CatmullRom.Scale(collage, pane, img, img.Bounds(), draw.Over, nil)
		}
		x += paneW

		if (i+1)%collageColumns == 0 {
			x = 0
			y += paneH
		}
	}

	return collage
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

func encodeFile(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create collage file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case ".gif":
		err = gif.Encode(f, img, nil)
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to encode collage: %w", err)
	}
	return f.Close()
}
