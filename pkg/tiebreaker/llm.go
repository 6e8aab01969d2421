package tiebreaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/mailrules/pkg/rules"
	"mercator-hq/mailrules/pkg/rules/engine"
)

const systemPrompt = `You are an email rule selector. You receive one email and a numbered list of
rules written by the mailbox owner. Pick the single rule whose instructions and
conditions best apply to the email, or no rule if none clearly applies. Prefer
earlier rules when two apply equally.

Answer with a JSON object only:
{"rule": "<rule id, or empty string for none>", "reason": "<one short sentence>"}`

// LLMConfig configures the LLM tie-breaker.
type LLMConfig struct {
	// MaxBodyChars truncates the message body in the prompt. Default: 4000
	MaxBodyChars int
}

// LLM is an engine.TieBreaker that asks a chat model to pick among the
// deferred candidates. An answer that names no rule, or a rule outside the
// candidate list, becomes "no rule applies".
type LLM struct {
	completer Completer
	config    LLMConfig
	logger    *slog.Logger
}

// NewLLM creates an LLM tie-breaker on top of completer.
func NewLLM(completer Completer, cfg LLMConfig, logger *slog.Logger) *LLM {
	if cfg.MaxBodyChars <= 0 {
		cfg.MaxBodyChars = 4000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{
		completer: completer,
		config:    cfg,
		logger:    logger.With("component", "tiebreaker.llm"),
	}
}

type answer struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// ChooseRule implements engine.TieBreaker.
func (l *LLM) ChooseRule(ctx context.Context, candidates []*rules.Rule, msg *rules.Message) (*engine.Choice, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	content, err := l.completer.Complete(ctx, []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: l.buildPrompt(candidates, msg)},
	})
	if err != nil {
		return nil, err
	}

	ans, err := parseAnswer(content)
	if err != nil {
		return nil, err
	}
	if ans.Rule == "" {
		return nil, nil
	}

	rule := matchCandidate(candidates, ans.Rule)
	if rule == nil {
		l.logger.Warn("model named a rule outside the candidates", "answer", ans.Rule)
		return nil, nil
	}
	return &engine.Choice{Rule: rule, Reason: ans.Reason}, nil
}

func (l *LLM) buildPrompt(candidates []*rules.Rule, msg *rules.Message) string {
	var sb strings.Builder

	sb.WriteString("EMAIL\n")
	fmt.Fprintf(&sb, "From: %s\n", msg.From)
	fmt.Fprintf(&sb, "To: %s\n", msg.To)
	fmt.Fprintf(&sb, "Subject: %s\n", msg.Subject)
	sb.WriteString("Body:\n")
	sb.WriteString(truncate(msg.Body, l.config.MaxBodyChars))
	sb.WriteString("\n\nRULES\n")

	for i, r := range candidates {
		fmt.Fprintf(&sb, "%d. id=%q name=%q\n", i+1, r.ID, r.DisplayName())
		if r.HasAI() {
			fmt.Fprintf(&sb, "   instructions: %s\n", *r.Instructions)
		}
		for _, c := range describeConditions(r) {
			fmt.Fprintf(&sb, "   %s\n", c)
		}
	}
	return sb.String()
}

// describeConditions lists the deterministic conditions of r so the model
// can weigh them alongside the instructions.
func describeConditions(r *rules.Rule) []string {
	var out []string
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"from", r.From}, {"to", r.To}, {"subject", r.Subject}, {"body", r.Body},
	} {
		if f.value != nil && *f.value != "" {
			out = append(out, fmt.Sprintf("%s matches: %s", f.name, *f.value))
		}
	}
	if r.HasGroup() {
		out = append(out, "sender or subject in group: "+*r.GroupID)
	}
	if r.HasCategory() {
		out = append(out, fmt.Sprintf("sender category %s: %s",
			strings.ToLower(string(*r.CategoryFilterType)), strings.Join(r.CategoryFilters, ", ")))
	}
	if len(out) > 1 || (len(out) == 1 && r.HasAI()) {
		out = append(out, "conditions joined with "+string(r.EffectiveOperator()))
	}
	return out
}

// parseAnswer extracts the JSON object from the model answer, tolerating
// code fences and surrounding prose.
func parseAnswer(content string) (*answer, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, &ParseError{Raw: content, Cause: errors.New("no JSON object in answer")}
	}

	var ans answer
	if err := json.Unmarshal([]byte(content[start:end+1]), &ans); err != nil {
		return nil, &ParseError{Raw: content, Cause: err}
	}
	ans.Rule = strings.TrimSpace(ans.Rule)
	if strings.EqualFold(ans.Rule, "none") || strings.EqualFold(ans.Rule, "null") {
		ans.Rule = ""
	}
	return &ans, nil
}

// matchCandidate resolves the model's answer by ID, then by name.
func matchCandidate(candidates []*rules.Rule, name string) *rules.Rule {
	for _, r := range candidates {
		if r.ID == name {
			return r
		}
	}
	for _, r := range candidates {
		if strings.EqualFold(r.Name, name) {
			return r
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var _ engine.TieBreaker = (*LLM)(nil)
