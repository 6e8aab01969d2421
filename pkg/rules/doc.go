// Package rules defines the data model shared by the rule evaluator, the
// stores and the tie-breakers: messages, rules with their four condition
// kinds (static, group, category, AI), groups, sender categories, and the
// Store contract used to load them.
//
// Rules, groups and messages are read-only inputs. Nothing in this module
// mutates them after they are handed to the evaluator.
package rules
