// Package runner drives agent turns for one session under control of
// the session registry.
//
// The runner owns four obligations the registry itself stays out of:
//
//   - It polls the session's pause flag before every agent turn and
//     blocks while the flag is set.
//   - It drains the agent's injection queue exactly once per command:
//     the head pending command is folded into the turn prompt and
//     marked delivered before the provider call.
//   - It delivers the adversary's private instructions exactly once,
//     on that agent's first turn, and never to anyone else.
//   - A failed provider call degrades the single turn, not the run:
//     the failure is recorded and the loop moves on.
//
// Invariants:
//   - The registry's turn counter only advances; the runner reports
//     its own count and lets the registry clamp.
//   - Transcript entries are appended to the store in turn order.
package runner
