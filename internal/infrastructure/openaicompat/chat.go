package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/basel-ax/biomio/internal/domain"
	"github.com/openai/openai-go/v2"
)

// TokenBuffer is reserved below the max token budget for vision requests to
// leave room for the image encoding overhead
const TokenBuffer = 500

// ChatConfig configures a ChatClient
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	VisionModel string
	TextModel   string
	MaxTokens   int
	Timeout     time.Duration
}

// ChatClient talks to a chat completion endpoint
type ChatClient struct {
	client openai.Client
	config ChatConfig
}

// NewChatClient creates a new chat/vision client
func NewChatClient(cfg ChatConfig) *ChatClient {
	return &ChatClient{
		client: newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		config: cfg,
	}
}

// Invoke sends prompt to the vision model when image is set, otherwise to the text model
func (c *ChatClient) Invoke(ctx context.Context, prompt string, image *domain.ImagePayload) (string, error) {
	if image != nil {
		return c.InvokeWithImage(ctx, prompt, *image)
	}
	return c.invoke(ctx, []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
	}, c.config.TextModel, c.config.MaxTokens, 0.5)
}

// InvokeWithImage sends prompt with one embedded image to the vision model
func (c *ChatClient) InvokeWithImage(ctx context.Context, prompt string, image domain.ImagePayload) (string, error) {
	return c.invoke(ctx, []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: image.DataURL(),
		}),
	}, c.config.VisionModel, c.config.MaxTokens-TokenBuffer, 0)
}

func (c *ChatClient) invoke(ctx context.Context, parts []openai.ChatCompletionContentPartUnionParam, model string, maxTokens int, temperature float64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call %s: %w", model, err)
	}

	if len(resp.Choices) == 0 {
		if detail := providerError(resp.RawJSON()); detail != "" {
			return "", fmt.Errorf("error calling %s: %s", model, detail)
		}
		return "", fmt.Errorf("unknown error calling %s", model)
	}

	answer := resp.Choices[0].Message.Content
	log.Println(answer)
	return answer, nil
}

// providerError extracts the non-standard "error" member some compatible
// providers put in a 200 response without choices
func providerError(raw string) string {
	if raw == "" {
		return ""
	}
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil || len(body.Error) == 0 || string(body.Error) == "null" {
		return ""
	}
	var message string
	if err := json.Unmarshal(body.Error, &message); err == nil {
		return message
	}
	return string(body.Error)
}
