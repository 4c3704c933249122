package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/inkstory-labs/ink-core/internal/admission"
	"github.com/inkstory-labs/ink-core/internal/genai"
	"github.com/inkstory-labs/ink-core/internal/protocol"
	"github.com/inkstory-labs/ink-core/internal/store"
	"github.com/inkstory-labs/ink-core/internal/ttsgateway"
)

type audioRequest struct {
	StoryID  string `json:"storyId"`
	DeviceID string `json:"deviceId"`
}

func (s *Server) handleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求体", nil)
		return
	}

	// narration shares the image quota: both are expensive media jobs
	identity := admission.ResolveIdentity(req.DeviceID, r.Header)
	quota := admission.QuotaFor(admission.ClassImage)
	if res := s.deps.Limiter.Check(r.Context(), identity, admission.ClassImage); !res.Allowed {
		writeRateLimited(w, res, quota.Message)
		return
	}

	if !validUUID(req.StoryID) {
		writeError(w, http.StatusBadRequest, "缺少或无效的故事ID", nil)
		return
	}

	story, err := s.deps.Store.GetStory(r.Context(), req.StoryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "故事不存在", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "服务器错误", nil)
		return
	}

	// A narration is synthesized once per story; later requests reuse it.
	if story.AudioURL != "" {
		writeSuccess(w, http.StatusOK, map[string]any{
			"audio_url": story.AudioURL,
			"cached":    true,
		})
		return
	}

	if s.deps.Synth == nil {
		writeError(w, http.StatusServiceUnavailable, "语音合成服务未配置", nil)
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

	result, err := s.deps.Synth.Synthesize(r.Context(), ttsgateway.SynthRequest{
		StoryID: story.ID,
		Text:    story.Content,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ttsgateway.ErrSessionTimeout) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, synthesisMessage(err), nil)
		return
	}

	if err := s.deps.Store.SetAudioURL(r.Context(), story.ID, result.AudioURL); err != nil {
		writeError(w, http.StatusInternalServerError, "保存音频地址失败", nil)
		return
	}

	s.deps.Bus.PublishJSON(protocol.SubjectAudioReady, protocol.AudioReady{
		StoryID:   story.ID,
		AudioURL:  result.AudioURL,
		Timestamp: s.clock().UTC(),
	})

	writeSuccess(w, http.StatusOK, map[string]any{
		"audio_url": result.AudioURL,
		"cached":    false,
	})
}

// synthesisMessage keeps the upstream diagnosis (including credential
// remediation hints) when present.
func synthesisMessage(err error) string {
	switch {
	case errors.Is(err, ttsgateway.ErrSessionTimeout):
		return "音频生成超时，请稍后重试"
	case errors.Is(err, ttsgateway.ErrNoAudio):
		return "音频生成失败：未收到音频数据"
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "生成音频失败，请稍后重试"
	}
	return msg
}

type imageGenRequest struct {
	StoryID  string `json:"storyId"`
	Words    string `json:"words"`
	Content  string `json:"content"`
	DeviceID string `json:"deviceId"`
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req imageGenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求体", nil)
		return
	}

	identity := admission.ResolveIdentity(req.DeviceID, r.Header)
	quota := admission.QuotaFor(admission.ClassImage)
	if res := s.deps.Limiter.Check(r.Context(), identity, admission.ClassImage); !res.Allowed {
		writeRateLimited(w, res, quota.Message)
		return
	}

	if !validUUID(req.StoryID) {
		writeError(w, http.StatusBadRequest, "缺少或无效的故事ID", nil)
		return
	}
	if strings.TrimSpace(req.Words) == "" {
		writeError(w, http.StatusBadRequest, "缺少关键词", nil)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "缺少故事内容", nil)
		return
	}

	if s.deps.Images == nil {
		writeError(w, http.StatusServiceUnavailable, "图片生成服务未配置", nil)
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

	url, err := s.deps.Images.GenerateImage(r.Context(), genai.ImageRequest{
		StoryID: req.StoryID,
		Words:   req.Words,
		Content: req.Content,
	})
	if err != nil {
		if errors.Is(err, genai.ErrEmptyCompletion) {
			writeError(w, http.StatusInternalServerError, "图片生成成功但无法获取图片地址，请检查API响应格式", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, externalAPIMessage(err, "图片生成失败，请稍后重试"), nil)
		return
	}

	if err := s.deps.Store.SetImageURL(r.Context(), req.StoryID, url); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "故事不存在", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "保存图片地址失败", nil)
		return
	}

	s.deps.Bus.PublishJSON(protocol.SubjectImageReady, protocol.ImageReady{
		StoryID:   req.StoryID,
		ImageURL:  url,
		Timestamp: s.clock().UTC(),
	})

	writeSuccess(w, http.StatusOK, map[string]any{"image_url": url})
}
