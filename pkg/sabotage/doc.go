// Package sabotage holds the strategy catalog and the one-time random
// adversary assignment made when a session starts.
//
// Invariants:
// - Assignments are immutable once created; instruction lookup is a pure read.
// - Sessions with fewer than two participants never get an assignment.
// - Catalog replacement never affects assignments already handed out.
package sabotage
