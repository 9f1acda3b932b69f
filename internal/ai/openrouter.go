// Package ai implements caption generation against an OpenRouter-compatible
// chat completions API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/generate"
	"github.com/jonesrussell/gopost/internal/logger"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client calls a chat completions endpoint and parses the structured reply.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	imageModel string
	client     *http.Client
	logger     logger.Logger
}

// NewClient creates an OpenRouter client. imageModel may be empty, in which
// case GenerateImage is a no-op and content ships without generated media.
func NewClient(baseURL, apiKey, model, imageModel string, timeout time.Duration, log logger.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openrouter api key is required")
	}
	if model == "" {
		return nil, errors.New("openrouter model is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		imageModel: imageModel,
		client:     &http.Client{Timeout: timeout},
		logger:     log,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// GenerateCaption implements generate.Generator.
func (c *Client) GenerateCaption(ctx context.Context, req generate.CaptionRequest) (*generate.CaptionResult, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req.Client)},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature: 0.8,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion failed: %d %s: %s", resp.StatusCode, resp.Status, truncate(string(body), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("decode chat completion response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("chat completion error %d: %s", chatResp.Error.Code, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	result, err := parseResult(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Caption generated",
		logger.String("content_id", req.Content.ID),
		logger.String("model", c.model),
		logger.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage implements generate.ImageGenerator against the
// OpenAI-compatible image generations endpoint. With no image model
// configured it returns an empty URL and the content ships without media.
func (c *Client) GenerateImage(ctx context.Context, req generate.ImageRequest) (string, error) {
	if c.imageModel == "" {
		return "", nil
	}

	payload, err := json.Marshal(imageRequest{
		Model:  c.imageModel,
		Prompt: imagePrompt(req),
		N:      1,
		Size:   "1024x1024",
	})
	if err != nil {
		return "", fmt.Errorf("marshal image request: %w", err)
	}

	endpoint := c.baseURL + "/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("image generation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read image generation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image generation failed: %d %s: %s", resp.StatusCode, resp.Status, truncate(string(body), 200))
	}

	var imageResp imageResponse
	if err := json.Unmarshal(body, &imageResp); err != nil {
		return "", fmt.Errorf("decode image generation response: %w", err)
	}
	if len(imageResp.Data) == 0 || imageResp.Data[0].URL == "" {
		return "", errors.New("image generation returned no image")
	}

	c.logger.Debug("Image generated",
		logger.String("content_id", req.Content.ID),
		logger.String("model", c.imageModel),
	)
	return imageResp.Data[0].URL, nil
}

func imagePrompt(req generate.ImageRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Social media photo for %s", req.Client.BusinessName)
	if req.Client.Industry != "" {
		fmt.Fprintf(&b, ", a %s business", req.Client.Industry)
	}
	fmt.Fprintf(&b, ": %s.", req.Content.Topic)
	if req.Content.FocusLocation != "" {
		fmt.Fprintf(&b, " Setting: %s.", req.Content.FocusLocation)
	}
	b.WriteString(" Natural light, no text overlay.")
	return b.String()
}

// parseResult extracts the JSON payload from the model reply, tolerating
// markdown code fences around it.
func parseResult(content string) (*generate.CaptionResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result generate.CaptionResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parse generated payload: %w", err)
	}
	if result.Caption == "" {
		return nil, errors.New("generated payload has no caption")
	}
	return &result, nil
}

func systemPrompt(client *domain.Client) string {
	var b strings.Builder
	b.WriteString("You are a social media copywriter for ")
	b.WriteString(client.BusinessName)
	if client.Industry != "" {
		b.WriteString(", a ")
		b.WriteString(client.Industry)
		b.WriteString(" business")
	}
	if loc := client.Location(); loc != "" {
		b.WriteString(" serving ")
		b.WriteString(loc)
	}
	b.WriteString(".")

	if client.BrandVoice != "" {
		b.WriteString(" Brand voice: ")
		b.WriteString(client.BrandVoice)
		b.WriteString(".")
	}
	if client.TonePreference != "" {
		b.WriteString(" Tone: ")
		b.WriteString(client.TonePreference)
		b.WriteString(".")
	}

	b.WriteString(` Reply with JSON only: {"caption": string, "hashtags": [string], "cta": string, "platform_captions": {platform: string}}.`)
	return b.String()
}

func userPrompt(req generate.CaptionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s post about: %s.", req.Content.ContentType, req.Content.Topic)
	if req.Content.FocusLocation != "" {
		fmt.Fprintf(&b, " Focus location: %s.", req.Content.FocusLocation)
	}
	if req.Content.Notes != "" {
		fmt.Fprintf(&b, " Notes: %s.", req.Content.Notes)
	}
	if len(req.Content.Platforms) > 0 {
		fmt.Fprintf(&b, " Target platforms: %s.", strings.Join(req.Content.Platforms, ", "))
	}
	if req.Content.RecycledFrom != nil {
		b.WriteString(" This reuses a topic that already performed well; write it fresh rather than rephrasing the old post.")
	}
	if req.Feedback != "" {
		fmt.Fprintf(&b, " A previous draft was rejected with this feedback, address it: %s.", req.Feedback)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
