package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/inkstory-labs/ink-core/internal/admission"
	"github.com/inkstory-labs/ink-core/internal/store"
)

const annotationMaxRunes = 500

type highlightRequest struct {
	StoryID    string `json:"storyId"`
	Text       string `json:"textContent"`
	StartIndex *int   `json:"startIndex"`
	EndIndex   *int   `json:"endIndex"`
	DeviceID   string `json:"deviceId"`
}

func (s *Server) handleSaveHighlight(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求体", nil)
		return
	}

	identity := admission.ResolveIdentity(req.DeviceID, r.Header)
	quota := admission.QuotaFor(admission.ClassHighlight)
	if res := s.deps.Limiter.Check(r.Context(), identity, admission.ClassHighlight); !res.Allowed {
		writeRateLimited(w, res, quota.Message)
		return
	}

	if !validUUID(req.StoryID) {
		writeError(w, http.StatusBadRequest, "无效的故事ID", nil)
		return
	}
	text := sanitizeText(strings.TrimSpace(req.Text), annotationMaxRunes)
	if text == "" {
		writeError(w, http.StatusBadRequest, "文本内容不能为空", nil)
		return
	}
	if req.StartIndex == nil || req.EndIndex == nil {
		writeError(w, http.StatusBadRequest, "缺少必要的参数", nil)
		return
	}
	if *req.StartIndex < 0 || *req.EndIndex <= *req.StartIndex {
		writeError(w, http.StatusBadRequest, "无效的索引范围", nil)
		return
	}
	if !validDeviceID(req.DeviceID) {
		writeError(w, http.StatusBadRequest, "缺少设备ID", nil)
		return
	}

	h := store.Highlight{
		StoryID:    req.StoryID,
		DeviceID:   req.DeviceID,
		Text:       text,
		StartIndex: *req.StartIndex,
		EndIndex:   *req.EndIndex,
	}
	if err := s.deps.Store.InsertHighlight(r.Context(), h); err != nil {
		writeError(w, http.StatusInternalServerError, "保存划线失败", nil)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"highlight": highlightView(h)})
}

func (s *Server) handleListHighlights(w http.ResponseWriter, r *http.Request) {
	storyID := r.URL.Query().Get("storyId")
	if !validUUID(storyID) {
		writeError(w, http.StatusBadRequest, "缺少或无效的 storyId 参数", nil)
		return
	}
	highlights, err := s.deps.Store.ListHighlights(r.Context(), storyID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "获取划线失败", nil)
		return
	}
	views := make([]map[string]any, 0, len(highlights))
	for _, h := range highlights {
		views = append(views, highlightView(h))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"highlights": views})
}

type thoughtRequest struct {
	StoryID  string `json:"storyId"`
	Content  string `json:"content"`
	DeviceID string `json:"deviceId"`
}

func (s *Server) handleSaveThought(w http.ResponseWriter, r *http.Request) {
	var req thoughtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求体", nil)
		return
	}

	identity := admission.ResolveIdentity(req.DeviceID, r.Header)
	quota := admission.QuotaFor(admission.ClassThought)
	if res := s.deps.Limiter.Check(r.Context(), identity, admission.ClassThought); !res.Allowed {
		writeRateLimited(w, res, quota.Message)
		return
	}

	if !validUUID(req.StoryID) {
		writeError(w, http.StatusBadRequest, "缺少必要的参数", nil)
		return
	}
	content := sanitizeText(strings.TrimSpace(req.Content), annotationMaxRunes)
	if content == "" {
		writeError(w, http.StatusBadRequest, "内容不能为空", nil)
		return
	}
	if !validDeviceID(req.DeviceID) {
		writeError(w, http.StatusBadRequest, "缺少设备ID", nil)
		return
	}

	t := store.Thought{StoryID: req.StoryID, DeviceID: req.DeviceID, Text: content}
	if err := s.deps.Store.InsertThought(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "保存想法失败", nil)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"thought": thoughtView(t)})
}

func (s *Server) handleListThoughts(w http.ResponseWriter, r *http.Request) {
	storyID := r.URL.Query().Get("storyId")
	if !validUUID(storyID) {
		writeError(w, http.StatusBadRequest, "缺少 storyId 参数", nil)
		return
	}
	thoughts, err := s.deps.Store.ListThoughts(r.Context(), storyID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "获取想法失败", nil)
		return
	}
	views := make([]map[string]any, 0, len(thoughts))
	for _, t := range thoughts {
		views = append(views, thoughtView(t))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"thoughts": views})
}

type likeRequest struct {
	StoryID  string `json:"storyId"`
	DeviceID string `json:"deviceId"`
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求体", nil)
		return
	}

	identity := admission.ResolveIdentity(req.DeviceID, r.Header)
	quota := admission.QuotaFor(admission.ClassLike)
	if res := s.deps.Limiter.Check(r.Context(), identity, admission.ClassLike); !res.Allowed {
		writeRateLimited(w, res, quota.Message)
		return
	}

	if !validUUID(req.StoryID) {
		writeError(w, http.StatusBadRequest, "缺少或无效的故事ID", nil)
		return
	}
	if !validDeviceID(req.DeviceID) {
		writeError(w, http.StatusBadRequest, "缺少设备ID", nil)
		return
	}

	if _, err := s.deps.Store.GetStory(r.Context(), req.StoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "故事不存在", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "点赞失败", nil)
		return
	}

	// Duplicate likes fall through to the current total, so the endpoint
	// is idempotent per (story, device).
	if _, err := s.deps.Store.Like(r.Context(), req.StoryID, req.DeviceID); err != nil {
		writeError(w, http.StatusInternalServerError, "点赞失败", nil)
		return
	}
	likes, err := s.deps.Store.CountLikes(r.Context(), req.StoryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "点赞失败", nil)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"likes": likes})
}

func highlightView(h store.Highlight) map[string]any {
	return map[string]any{
		"story_id":     h.StoryID,
		"text_content": h.Text,
		"start_index":  h.StartIndex,
		"end_index":    h.EndIndex,
	}
}

func thoughtView(t store.Thought) map[string]any {
	return map[string]any{
		"story_id": t.StoryID,
		"content":  t.Text,
	}
}
