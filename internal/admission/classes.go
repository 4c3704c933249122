package admission

import "time"

// Class names a category of expensive action with its own quota.
type Class string

const (
	ClassStory     Class = "story"
	ClassImage     Class = "image"
	ClassHighlight Class = "highlight"
	ClassThought   Class = "thought"
	ClassLike      Class = "like"
	ClassGeneral   Class = "general"
)

// Quota is the immutable sliding-window configuration for one class.
type Quota struct {
	Window      time.Duration
	MaxRequests int
	Message     string
}

var quotas = map[Class]Quota{
	ClassStory:     {Window: time.Hour, MaxRequests: 10, Message: "请求过于频繁，请稍后再试"},
	ClassImage:     {Window: time.Hour, MaxRequests: 20, Message: "图片生成请求过于频繁，请稍后再试"},
	ClassHighlight: {Window: time.Minute, MaxRequests: 30, Message: "高亮操作过于频繁，请稍后再试"},
	ClassThought:   {Window: time.Minute, MaxRequests: 20, Message: "想法操作过于频繁，请稍后再试"},
	ClassLike:      {Window: time.Minute, MaxRequests: 50, Message: "点赞操作过于频繁，请稍后再试"},
	ClassGeneral:   {Window: time.Minute, MaxRequests: 60, Message: "请求过于频繁，请稍后再试"},
}

// QuotaFor returns the quota for a class, falling back to the general
// quota for unclassified operations.
func QuotaFor(c Class) Quota {
	if q, ok := quotas[c]; ok {
		return q
	}
	return quotas[ClassGeneral]
}
