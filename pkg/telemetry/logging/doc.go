// Package logging builds the structured loggers used across mailrules.
//
// New returns a plain *slog.Logger, so every component keeps taking
// *slog.Logger in its constructor. The handler it installs:
//   - adds user_id, message_id, thread_id and run_id from the context
//   - masks email addresses (a***@example.com), bearer tokens and API keys
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:        "info",
//	    Format:       "json",
//	    RedactEmails: true,
//	})
//
//	ctx = logging.WithMessage(ctx, "user-1", "msg-42", "thread-7")
//	logger.InfoContext(ctx, "rule matched", "from", "alice@example.com")
//	// {"msg":"rule matched","user_id":"user-1",...,"from":"a***@example.com"}
package logging
