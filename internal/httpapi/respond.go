package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/inkstory-labs/ink-core/internal/admission"
)

// errorBody is the envelope for every failed request, matching the shape
// clients already parse: {"error": "...", ...extras}.
type errorBody map[string]any

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string, extra map[string]any) {
	body := errorBody{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeSuccess merges {"success": true} into the payload map.
func writeSuccess(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeRateLimited renders a denied admission result with the standard
// retry headers so well-behaved clients can back off precisely.
func writeRateLimited(w http.ResponseWriter, res admission.Result, msg string) {
	retrySecs := int(res.RetryAfter.Seconds())
	if retrySecs < 1 {
		retrySecs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retrySecs))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	writeError(w, http.StatusTooManyRequests, msg, map[string]any{
		"retryAfter": retrySecs,
	})
}
