package httpapi

import (
	"html"
	"regexp"
	"strings"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func validUUID(id string) bool {
	return uuidPattern.MatchString(strings.ToLower(id))
}

func validDeviceID(id string) bool {
	return id != ""
}

// sanitizeText strips control characters (keeping common whitespace),
// truncates to maxRunes, and escapes HTML so stored annotations are inert
// when rendered.
func sanitizeText(text string, maxRunes int) string {
	var b strings.Builder
	for _, r := range text {
		if r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := []rune(b.String())
	if len(cleaned) > maxRunes {
		cleaned = cleaned[:maxRunes]
	}
	return html.EscapeString(string(cleaned))
}
