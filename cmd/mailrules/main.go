// Mailrules evaluates user-authored email rules against messages.
//
// Each rule combines static patterns (from, to, subject, body), sender
// groups, sender categories and an optional natural-language instruction.
// Deterministic conditions are checked first; rules that only an AI can
// settle are handed to a tie-breaker in a single call.
//
// Usage:
//
//	# Evaluate one message
//	mailrules evaluate --store rules.yaml --user u1 --message msg.yaml
//
//	# Evaluate a JSONL file with a worker pool
//	mailrules batch --store rules.yaml --user u1 --messages msgs.jsonl --workers 8
//
//	# Validate a store file
//	mailrules lint --store rules.yaml
//
//	# Inspect and prune execution records
//	mailrules audit list --user u1
//	mailrules audit prune
//
//	# Show version information
//	mailrules version
package main

func main() {
	Execute()
}
