package model

import (
	"encoding/base64"
	"regexp"
	"strings"
)

// trailingDigits matches a run of digits at the end of a string.
// Last-resort extraction when an identifier is neither numeric nor a
// recognizable URI form.
var trailingDigits = regexp.MustCompile(`(\d+)$`)

// NormalizeVariantID reduces an opaque variant identifier to its numeric
// form. The storefront hands back identifiers in several encodings
// depending on API version:
//
//   - plain numeric:   "44906238509325"
//   - URI-style gid:   "gid://shopify/ProductVariant/44906238509325"
//   - base64 of a gid: "Z2lkOi8vc2hvcGlmeS9Qcm9kdWN0VmFyaWFudC80NDkwNg=="
//
// Tried in order: numeric suffix after the last path separator when the
// string already looks URI-style, decode-then-retry when base64 decoding
// succeeds, then a trailing-digits regex fallback. Returns ("", false)
// when nothing usable can be extracted; callers must treat that entry as
// unmatched rather than failing the whole collection.
func NormalizeVariantID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if isAllDigits(raw) {
		return raw, true
	}

	if id, ok := numericPathSuffix(raw); ok {
		return id, true
	}

	// Encoded gids come back from older API versions; decode and retry.
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if id, ok := numericPathSuffix(string(decoded)); ok {
			return id, true
		}
	}

	if m := trailingDigits.FindString(raw); m != "" {
		return m, true
	}

	return "", false
}

// numericPathSuffix extracts the segment after the last "/" if the string
// looks URI-style and the segment is purely numeric.
func numericPathSuffix(s string) (string, bool) {
	if !strings.Contains(s, "://") {
		return "", false
	}
	idx := strings.LastIndex(s, "/")
	if idx < 0 || idx == len(s)-1 {
		return "", false
	}
	tail := s[idx+1:]
	if !isAllDigits(tail) {
		return "", false
	}
	return tail, true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
