// Package store persists session transcripts and tool outcomes to
// SQLite. The turn runner appends as turns execute; the detection
// engine reads the accumulated history back when asked to analyze a
// session.
//
// Writes are append-only. A session's history is never rewritten, so
// repeated detection runs over the same session see the same data.
package store
