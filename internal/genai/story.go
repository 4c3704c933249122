package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/inkstory-labs/ink-core/internal/config"
)

type chatStoryGenerator struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewChatStoryGenerator builds a StoryGenerator backed by an OpenAI-style
// chat completions endpoint.
func NewChatStoryGenerator(cfg config.StoryConfig) StoryGenerator {
	return &chatStoryGenerator{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      http.DefaultClient,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type upstreamErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func storyPrompt(words string) string {
	var desc string
	switch len([]rune(words)) {
	case 1:
		desc = "这个字"
	case 2:
		desc = "这两个字"
	default:
		desc = "这三个字"
	}
	return fmt.Sprintf(`请根据"%s"%s，用「简体中文」创作一个有趣又引人思考的短故事。故事应该：
1. 围绕%s展开
2. 有创意和想象力
3. 能引发读者的思考
4. 长度控制在300-500字左右

请直接输出故事内容，不要包含标题或其他说明文字，也不要使用繁体中文。`, words, desc, desc)
}

func (g *chatStoryGenerator) GenerateStory(ctx context.Context, req StoryRequest) (string, error) {
	payload := chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: storyPrompt(req.Words)}},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", readUpstreamError("DeepSeek", resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// readUpstreamError drains a non-2xx response into an UpstreamError. The
// body may be a JSON envelope with a nested error message or plain text.
func readUpstreamError(provider string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	msg := ""
	var parsed upstreamErrorBody
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error.Message != "" {
			msg = parsed.Error.Message
		} else if parsed.Message != "" {
			msg = parsed.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return &UpstreamError{Provider: provider, Status: resp.StatusCode, Message: msg}
}
