package rules

import (
	"net/mail"
	"strings"
)

// NormalizeAddress extracts the bare email address from a header value such
// as "Jane Doe <Jane@Example.com>" and lowercases it. Values that do not
// parse are trimmed and lowercased as-is.
func NormalizeAddress(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(header); err == nil {
		return strings.ToLower(addr.Address)
	}
	if start := strings.LastIndex(header, "<"); start >= 0 {
		if end := strings.LastIndex(header, ">"); end > start {
			return strings.ToLower(strings.TrimSpace(header[start+1 : end]))
		}
	}
	return strings.ToLower(header)
}
