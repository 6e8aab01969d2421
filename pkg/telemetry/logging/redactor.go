package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	bearerPattern = regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`)
	apiKeyPattern = regexp.MustCompile(`sk-[a-zA-Z0-9_-]{8,}`)
)

// Redactor masks email addresses and credentials in log values.
type Redactor struct {
	sensitiveKeys []string
}

// NewRedactor creates a redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		sensitiveKeys: []string{"api_key", "apikey", "authorization", "password", "secret", "token"},
	}
}

// RedactString masks every email address and credential in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	redacted := emailPattern.ReplaceAllStringFunc(value, RedactEmail)
	redacted = bearerPattern.ReplaceAllString(redacted, "Bearer ***")
	return apiKeyPattern.ReplaceAllString(redacted, "sk-***")
}

// RedactAttr returns a with its string values redacted. Groups are
// processed recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	value := a.Value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		if r.isSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
		return slog.String(a.Key, r.RedactString(value.String()))
	case slog.KindGroup:
		group := value.Group()
		attrs := make([]any, len(group))
		for i, ga := range group {
			attrs[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, attrs...)
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
		if s, ok := value.Any().([]string); ok {
			out := make([]string, len(s))
			for i, v := range s {
				out[i] = r.RedactString(v)
			}
			return slog.Any(a.Key, out)
		}
	}
	return slog.Attr{Key: a.Key, Value: value}
}

func (r *Redactor) isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range r.sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// RedactEmail redacts an email address partially (shows first char and domain).
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}

	username := email[:at]
	domain := email[at+1:]
	if username == "" {
		return "***@" + domain
	}
	return username[:1] + "***@" + domain
}
