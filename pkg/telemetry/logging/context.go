package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// UserIDKey is the context key for the mailbox owner.
	UserIDKey contextKey = "user_id"

	// MessageIDKey is the context key for the message being evaluated.
	MessageIDKey contextKey = "message_id"

	// ThreadIDKey is the context key for the message thread.
	ThreadIDKey contextKey = "thread_id"

	// RunIDKey is the context key for an evaluation run.
	RunIDKey contextKey = "run_id"
)

var contextKeys = []contextKey{UserIDKey, MessageIDKey, ThreadIDKey, RunIDKey}

// WithUserID adds a user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves the user ID from the context.
func GetUserID(ctx context.Context) string {
	return getString(ctx, UserIDKey)
}

// WithMessageID adds a message ID to the context.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

// GetMessageID retrieves the message ID from the context.
func GetMessageID(ctx context.Context) string {
	return getString(ctx, MessageIDKey)
}

// WithThreadID adds a thread ID to the context.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, ThreadIDKey, threadID)
}

// GetThreadID retrieves the thread ID from the context.
func GetThreadID(ctx context.Context) string {
	return getString(ctx, ThreadIDKey)
}

// WithRunID adds an evaluation run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	return getString(ctx, RunIDKey)
}

// WithMessage adds the user, message and thread IDs in one call.
func WithMessage(ctx context.Context, userID, messageID, threadID string) context.Context {
	if userID != "" {
		ctx = WithUserID(ctx, userID)
	}
	if messageID != "" {
		ctx = WithMessageID(ctx, messageID)
	}
	if threadID != "" {
		ctx = WithThreadID(ctx, threadID)
	}
	return ctx
}

func getString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns the populated context fields as attributes.
func extractContextFields(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v := getString(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
