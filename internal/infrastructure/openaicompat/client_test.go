package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/basel-ax/biomio/internal/domain"
)

type recorded struct {
	path string
	body map[string]any
}

func newServer(t *testing.T, status int, response string, rec *recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec != nil {
			rec.path = r.URL.Path
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const chatOK = `{"id":"c1","object":"chat.completion","created":1,"model":"m",
	"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"A mountain lake."}}]}`

func TestChatClientVisionRequest(t *testing.T) {
	var rec recorded
	srv := newServer(t, http.StatusOK, chatOK, &rec)
	c := NewChatClient(ChatConfig{APIKey: "k", BaseURL: srv.URL, VisionModel: "vision", TextModel: "text", MaxTokens: 1000, Timeout: time.Second})

	got, err := c.Invoke(context.Background(), "describe", &domain.ImagePayload{MIMESubtype: "png", Base64: "AAAA"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "A mountain lake." {
		t.Fatalf("unexpected answer %q", got)
	}
	if !strings.HasSuffix(rec.path, "/chat/completions") {
		t.Errorf("unexpected path %s", rec.path)
	}
	if rec.body["model"] != "vision" {
		t.Errorf("expected vision model, got %v", rec.body["model"])
	}
	if rec.body["max_tokens"] != float64(1000-TokenBuffer) {
		t.Errorf("expected max_tokens %d, got %v", 1000-TokenBuffer, rec.body["max_tokens"])
	}
	raw, _ := json.Marshal(rec.body["messages"])
	if !strings.Contains(string(raw), "data:image/png;base64,AAAA") {
		t.Errorf("image data URL missing from request: %s", raw)
	}
}

func TestChatClientTextRequest(t *testing.T) {
	var rec recorded
	srv := newServer(t, http.StatusOK, chatOK, &rec)
	c := NewChatClient(ChatConfig{APIKey: "k", BaseURL: srv.URL, VisionModel: "vision", TextModel: "text", MaxTokens: 1000})

	if _, err := c.Invoke(context.Background(), "Summarize: a lake", nil); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rec.body["model"] != "text" {
		t.Errorf("expected text model, got %v", rec.body["model"])
	}
	if rec.body["max_tokens"] != float64(1000) {
		t.Errorf("expected full token budget, got %v", rec.body["max_tokens"])
	}
	if rec.body["temperature"] != 0.5 {
		t.Errorf("expected temperature 0.5, got %v", rec.body["temperature"])
	}
	raw, _ := json.Marshal(rec.body["messages"])
	if strings.Contains(string(raw), "image_url") || !strings.Contains(string(raw), "Summarize: a lake") {
		t.Errorf("expected prompt in request: %s", raw)
	}
}

func TestChatClientNoChoices(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"provider error", `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[],"error":"model overloaded"}`, "error calling text: model overloaded"},
		{"unknown error", `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`, "unknown error calling text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, http.StatusOK, tt.response, nil)
			c := NewChatClient(ChatConfig{APIKey: "k", BaseURL: srv.URL, TextModel: "text", MaxTokens: 1000})
			_, err := c.Invoke(context.Background(), "hi", nil)
			if err == nil || err.Error() != tt.want {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestImageClientReturnsURL(t *testing.T) {
	var rec recorded
	srv := newServer(t, http.StatusOK, `{"created":1,"data":[{"url":"https://x/img.png"}]}`, &rec)
	c := NewImageClient("k", srv.URL, "dall-e-3", time.Second)

	url, err := c.GenerateImage(context.Background(), "a lake")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if url != "https://x/img.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if !strings.HasSuffix(rec.path, "/images/generations") {
		t.Errorf("unexpected path %s", rec.path)
	}
	if rec.body["prompt"] != "a lake" || rec.body["model"] != "dall-e-3" {
		t.Errorf("unexpected request body %v", rec.body)
	}
}

func TestImageClientRateLimited(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`, nil)
	c := NewImageClient("k", srv.URL, "dall-e-3", time.Second)

	_, err := c.GenerateImage(context.Background(), "a lake")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestImageClientContentPolicyViolation(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest, `{"error":{"message":"rejected","type":"invalid_request_error","code":"content_policy_violation"}}`, nil)
	c := NewImageClient("k", srv.URL, "dall-e-3", time.Second)

	_, err := c.GenerateImage(context.Background(), "a forbidden lake")
	var cpv *domain.ContentPolicyViolationError
	if !errors.As(err, &cpv) {
		t.Fatalf("expected ContentPolicyViolationError, got %v", err)
	}
	if cpv.Prompt != "a forbidden lake" {
		t.Fatalf("expected carried prompt, got %q", cpv.Prompt)
	}
}

func TestImageClientOtherBadRequest(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest, `{"error":{"message":"bad size","type":"invalid_request_error","code":"invalid_size"}}`, nil)
	c := NewImageClient("k", srv.URL, "dall-e-3", time.Second)

	_, err := c.GenerateImage(context.Background(), "a lake")
	if err == nil {
		t.Fatal("expected error")
	}
	var cpv *domain.ContentPolicyViolationError
	if errors.As(err, &cpv) || errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("bad request should pass through unchanged, got %v", err)
	}
}
