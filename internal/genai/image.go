package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/inkstory-labs/ink-core/internal/config"
)

type arkImageGenerator struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewArkImageGenerator builds an ImageGenerator backed by a Volcengine Ark
// style images/generations endpoint.
func NewArkImageGenerator(cfg config.ImageConfig) ImageGenerator {
	return &arkImageGenerator{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   http.DefaultClient,
	}
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Sequential     string `json:"sequential_image_generation"`
	ResponseFormat string `json:"response_format"`
	Size           string `json:"size"`
	Stream         bool   `json:"stream"`
	Watermark      bool   `json:"watermark"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	URL      string `json:"url"`
	ImageURL string `json:"image_url"`
}

func imagePrompt(words, content string) string {
	runes := []rune(content)
	if len(runes) > 500 {
		content = string(runes[:500])
	}
	return fmt.Sprintf(`根据以下故事内容创作一幅精美的插画：故事关键词是"%s"，故事内容：%s。要求：画面要符合故事的主题和氛围，风格温馨、有艺术感，适合作为故事配图，画面简洁但不失细节，电影大片质感，细腻的色彩层次，真实质感，光影效果营造氛围，兼具艺术幻想感`, words, content)
}

func (g *arkImageGenerator) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	payload := imageRequest{
		Model:          g.model,
		Prompt:         imagePrompt(req.Words, req.Content),
		Sequential:     "disabled",
		ResponseFormat: "url",
		Size:           "1K",
		Stream:         false,
		Watermark:      true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
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
		return "", readUpstreamError("豆包", resp)
	}

	var parsed imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	url := ""
	switch {
	case len(parsed.Data) > 0:
		url = parsed.Data[0].URL
		if url == "" {
			url = parsed.Data[0].B64JSON
		}
	case parsed.URL != "":
		url = parsed.URL
	case parsed.ImageURL != "":
		url = parsed.ImageURL
	}
	if url == "" {
		return "", ErrEmptyCompletion
	}
	return url, nil
}
