package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileToBase64(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", 4, 4, color.White)

	payload, err := FileToBase64(path)
	if err != nil {
		t.Fatalf("FileToBase64: %v", err)
	}
	if payload.MIMESubtype != "png" {
		t.Fatalf("expected png, got %q", payload.MIMESubtype)
	}
	raw, _ := os.ReadFile(path)
	if payload.Base64 != base64.StdEncoding.EncodeToString(raw) {
		t.Fatalf("payload does not match file contents")
	}
	if !strings.HasPrefix(payload.DataURL(), "data:image/png;base64,") {
		t.Fatalf("unexpected data URL prefix: %s", payload.DataURL()[:30])
	}
}

func TestFileToBase64DetectsFormatFromContent(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	// misleading extension
	path := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	payload, err := FileToBase64(path)
	if err != nil {
		t.Fatalf("FileToBase64: %v", err)
	}
	if payload.MIMESubtype != "jpeg" {
		t.Fatalf("expected jpeg, got %q", payload.MIMESubtype)
	}
}

func TestFileToBase64RejectsUnknownData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := FileToBase64(path); err == nil {
		t.Fatal("expected error for non-image file")
	}
}

func TestURLToTempFile(t *testing.T) {
	body := []byte("not really a png but bytes are bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	codec := NewCodec(dir, time.Second)
	path, err := codec.URLToTempFile(context.Background(), srv.URL+"/img.png", "biomio_")
	if err != nil {
		t.Fatalf("URLToTempFile: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("expected file in %s, got %s", dir, path)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "biomio_") || !strings.HasSuffix(base, ".png") {
		t.Errorf("unexpected temp file name %s", base)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, body) {
		t.Errorf("temp file content mismatch")
	}
}

func TestURLToTempFileBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	codec := NewCodec(t.TempDir(), time.Second)
	if _, err := codec.URLToTempFile(context.Background(), srv.URL, "biomio_"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestURLToDataURL(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	codec := NewCodec("", time.Second)
	url, err := codec.URLToDataURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("URLToDataURL: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("unexpected prefix: %s", url)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatal(err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil || format != "png" {
		t.Fatalf("expected png payload, got %q (%v)", format, err)
	}
}
