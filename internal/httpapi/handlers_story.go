package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/inkstory-labs/ink-core/internal/admission"
	"github.com/inkstory-labs/ink-core/internal/genai"
	"github.com/inkstory-labs/ink-core/internal/protocol"
	"github.com/inkstory-labs/ink-core/internal/store"
)

type generateRequest struct {
	Words    string `json:"words"`
	DeviceID string `json:"deviceId"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求体", nil)
		return
	}

	identity := admission.ResolveIdentity(req.DeviceID, r.Header)
	quota := admission.QuotaFor(admission.ClassStory)
	if res := s.deps.Limiter.Check(r.Context(), identity, admission.ClassStory); !res.Allowed {
		writeRateLimited(w, res, quota.Message)
		return
	}

	words := strings.TrimSpace(req.Words)
	if n := len([]rune(words)); n == 0 || n > 3 {
		writeError(w, http.StatusBadRequest, "请输入1-3个字", nil)
		return
	}
	if !validDeviceID(req.DeviceID) {
		writeError(w, http.StatusBadRequest, "缺少设备ID", nil)
		return
	}

	// The daily cap is checked before spending upstream tokens. A count
	// failure rejects the request: unlike the per-window limiter this
	// guard fails closed, since nothing else enforces the per-device cap.
	dayStart := s.startOfToday()
	used, err := s.deps.Store.CountStoriesSince(r.Context(), req.DeviceID, dayStart)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "无法验证创作次数限制，请稍后重试", map[string]any{
			"limit": s.cfg.Story.DailyLimit, "used": 0,
		})
		return
	}
	if used >= s.cfg.Story.DailyLimit {
		writeError(w, http.StatusTooManyRequests, "今日创作次数已用完，请明天再试", map[string]any{
			"limit": s.cfg.Story.DailyLimit, "used": used, "remaining": 0,
		})
		return
	}

	if s.deps.Stories == nil {
		writeError(w, http.StatusServiceUnavailable, "故事生成服务未配置", nil)
		return
	}

	release, err := s.deps.Lock.Acquire(r.Context(), identity)
	if err != nil {
		if errors.Is(err, admission.ErrAlreadyInProgress) {
			writeError(w, http.StatusConflict, "已有生成任务进行中，请稍候再试", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "服务器错误", nil)
		return
	}
	defer release()

	content, err := s.deps.Stories.GenerateStory(r.Context(), genai.StoryRequest{Words: words})
	if err != nil {
		if errors.Is(err, genai.ErrEmptyCompletion) {
			writeError(w, http.StatusInternalServerError, "生成的故事内容为空", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, externalAPIMessage(err, "生成故事失败，请稍后重试"), nil)
		return
	}

	story := store.Story{
		ID:       uuid.NewString(),
		DeviceID: req.DeviceID,
		Words:    words,
		Content:  content,
	}
	if err := s.deps.Store.InsertStory(r.Context(), story); err != nil {
		writeError(w, http.StatusInternalServerError, "保存故事失败", nil)
		return
	}

	s.deps.Bus.PublishJSON(protocol.SubjectStoryGenerated, protocol.StoryGenerated{
		StoryID:   story.ID,
		DeviceID:  story.DeviceID,
		Words:     story.Words,
		Timestamp: s.clock().UTC(),
	})

	writeSuccess(w, http.StatusOK, map[string]any{"story": storyView(story)})
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !validUUID(id) {
		writeError(w, http.StatusBadRequest, "缺少或无效的故事ID", nil)
		return
	}
	story, err := s.deps.Store.GetStory(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "故事不存在", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "服务器错误", nil)
		return
	}
	likes, _ := s.deps.Store.CountLikes(r.Context(), id)
	view := storyView(story)
	view["likes"] = likes
	writeSuccess(w, http.StatusOK, map[string]any{"story": view})
}

func (s *Server) handleDailyLimit(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if !validDeviceID(deviceID) {
		writeError(w, http.StatusBadRequest, "缺少设备ID", nil)
		return
	}
	used, err := s.deps.Store.CountStoriesSince(r.Context(), deviceID, s.startOfToday())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "获取剩余次数失败", nil)
		return
	}
	remaining := s.cfg.Story.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"limit":     s.cfg.Story.DailyLimit,
		"used":      used,
		"remaining": remaining,
	})
}

func (s *Server) startOfToday() time.Time {
	now := s.clock().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func storyView(st store.Story) map[string]any {
	view := map[string]any{
		"id":         st.ID,
		"words":      st.Words,
		"content":    st.Content,
		"created_at": st.CreatedAt,
	}
	if st.AudioURL != "" {
		view["audio_url"] = st.AudioURL
	}
	if st.ImageURL != "" {
		view["image_url"] = st.ImageURL
	}
	return view
}

// externalAPIMessage shapes an upstream failure into user-facing text,
// surfacing billing and credential problems explicitly.
func externalAPIMessage(err error, fallback string) string {
	var ue *genai.UpstreamError
	if !errors.As(err, &ue) {
		return fallback
	}
	switch {
	case strings.Contains(ue.Message, "Insufficient Balance"), strings.Contains(ue.Message, "余额不足"):
		return ue.Provider + " 余额不足，请充值后重试"
	case strings.Contains(ue.Message, "Invalid API key"), strings.Contains(ue.Message, "API key"):
		return ue.Provider + " Key 无效，请检查配置"
	case ue.Message != "":
		return ue.Provider + " 错误: " + ue.Message
	}
	return fallback
}
