package admission

import (
	"net/http"
	"testing"
)

func TestResolveIdentityPrefersDeviceID(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", "203.0.113.5, 70.41.3.18")
	h.Set("X-Real-Ip", "198.51.100.7")

	if got := ResolveIdentity("abc", h); got != "device:abc" {
		t.Fatalf("expected device identity, got %s", got)
	}
}

func TestResolveIdentityForwardedFor(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", "203.0.113.5, 70.41.3.18")

	if got := ResolveIdentity("", h); got != "ip:203.0.113.5" {
		t.Fatalf("expected first forwarded entry, got %s", got)
	}
}

func TestResolveIdentityRealIPFallback(t *testing.T) {
	h := http.Header{}
	h.Set("X-Real-Ip", "198.51.100.7")

	if got := ResolveIdentity("", h); got != "ip:198.51.100.7" {
		t.Fatalf("expected real-ip fallback, got %s", got)
	}
}

func TestResolveIdentityUnknown(t *testing.T) {
	if got := ResolveIdentity("", http.Header{}); got != "ip:unknown" {
		t.Fatalf("expected unknown origin, got %s", got)
	}
}
