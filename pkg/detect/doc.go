// Package detect identifies the likely adversary in a finished or
// running session from behavioral evidence alone.
//
// Scoring has two layers. Rule-based signals scan the transcript and
// tool outcomes for four patterns: tool failure anomalies, timing talk
// plus self-contradiction, message length and hesitation anomalies,
// and vague versus concrete information. An optional LLM judgment pass
// reads the same evidence and scores each participant; rule and
// judgment scores fuse at fixed proportions. A failed judgment call
// silently falls back to rule-only scores and flags the report as
// degraded.
//
// Invariants:
//   - Every reported score lies in [0, 1].
//   - The suggestion is the argmax of the fused scores; ties resolve
//     to the earliest participant in input order, so repeated analysis
//     of the same evidence names the same suspect.
//   - The detector never reads the registry's adversary assignment.
package detect
