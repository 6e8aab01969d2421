// Package tiebreaker implements engine.TieBreaker.
//
// The LLM tie-breaker renders the message and the deferred candidate rules
// into a chat prompt, sends it through a Completer and maps the JSON answer
// back onto one of the candidates. OpenAICompleter talks to any
// OpenAI-compatible /chat/completions endpoint with retry on transient
// failures.
//
//	completer, err := tiebreaker.NewOpenAICompleter(tiebreaker.OpenAIConfig{
//	    BaseURL: "https://api.openai.com/v1",
//	    Model:   "gpt-4o-mini",
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	}, logger)
//	tb := tiebreaker.NewLLM(completer, tiebreaker.LLMConfig{}, logger)
//	decision, err := evaluator.Decide(ctx, input, tb)
//
// Static and None are deterministic tie-breakers for tests and offline use.
package tiebreaker
