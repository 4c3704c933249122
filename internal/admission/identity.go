package admission

import (
	"net/http"
	"strings"
)

// ResolveIdentity derives the admission-control key for a caller. An
// explicit device id wins so one physical client is limited consistently
// across network paths; otherwise the network origin is used.
func ResolveIdentity(deviceID string, header http.Header) string {
	if deviceID != "" {
		return "device:" + deviceID
	}

	ip := "unknown"
	if forwarded := header.Get("X-Forwarded-For"); forwarded != "" {
		ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	} else if real := header.Get("X-Real-Ip"); real != "" {
		ip = real
	}
	return "ip:" + ip
}
