package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/inkstory-labs/ink-core/internal/config"
)

func TestGenerateStoryReturnsCompletion(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "  从前有一座山。  "}},
			},
		})
	}))
	defer srv.Close()

	gen := NewChatStoryGenerator(config.StoryConfig{
		Endpoint:    srv.URL,
		APIKey:      "sk-test",
		Model:       "deepseek-chat",
		MaxTokens:   1000,
		Temperature: 0.8,
	})
	content, err := gen.GenerateStory(context.Background(), StoryRequest{Words: "山水"})
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	if content != "从前有一座山。" {
		t.Fatalf("content = %q", content)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotReq.Model != "deepseek-chat" || gotReq.MaxTokens != 1000 {
		t.Fatalf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || !strings.Contains(gotReq.Messages[0].Content, "山水") {
		t.Fatalf("prompt missing seed words: %+v", gotReq.Messages)
	}
	if !strings.Contains(gotReq.Messages[0].Content, "这两个字") {
		t.Fatalf("prompt should describe a two character seed: %q", gotReq.Messages[0].Content)
	}
}

func TestGenerateStoryUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Insufficient Balance"},
		})
	}))
	defer srv.Close()

	gen := NewChatStoryGenerator(config.StoryConfig{Endpoint: srv.URL, APIKey: "sk-test", Model: "deepseek-chat"})
	_, err := gen.GenerateStory(context.Background(), StoryRequest{Words: "火"})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Status != http.StatusPaymentRequired || ue.Message != "Insufficient Balance" {
		t.Fatalf("upstream error = %+v", ue)
	}
}

func TestGenerateStoryEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	gen := NewChatStoryGenerator(config.StoryConfig{Endpoint: srv.URL})
	_, err := gen.GenerateStory(context.Background(), StoryRequest{Words: "光"})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestGenerateImageParsesDataArray(t *testing.T) {
	var gotReq imageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"url": "https://img.example/1.png"}},
		})
	}))
	defer srv.Close()

	gen := NewArkImageGenerator(config.ImageConfig{Endpoint: srv.URL, APIKey: "ak", Model: "ep-test"})
	url, err := gen.GenerateImage(context.Background(), ImageRequest{StoryID: "s1", Words: "海", Content: "海边的故事"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if url != "https://img.example/1.png" {
		t.Fatalf("url = %q", url)
	}
	if gotReq.ResponseFormat != "url" || gotReq.Size != "1K" || !gotReq.Watermark {
		t.Fatalf("request = %+v", gotReq)
	}
	if !strings.Contains(gotReq.Prompt, "海边的故事") {
		t.Fatalf("prompt missing story content: %q", gotReq.Prompt)
	}
}

func TestGenerateImageTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("字", 600)
	prompt := imagePrompt("梦", long)
	if strings.Contains(prompt, long) {
		t.Fatal("prompt should not embed the full story text")
	}
	if !strings.Contains(prompt, strings.Repeat("字", 500)) {
		t.Fatal("prompt should keep the first 500 characters")
	}
}

func TestMockGenerators(t *testing.T) {
	story, err := NewMockStoryGenerator().GenerateStory(context.Background(), StoryRequest{Words: "云"})
	if err != nil || !strings.Contains(story, "云") {
		t.Fatalf("mock story = %q, err = %v", story, err)
	}
	url, err := NewMockImageGenerator().GenerateImage(context.Background(), ImageRequest{StoryID: "abc"})
	if err != nil || url != "mock://image/abc" {
		t.Fatalf("mock image = %q, err = %v", url, err)
	}
}
