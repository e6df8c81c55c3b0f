// Package agent provides LLM provider clients shared by the turn
// runner (agent response generation) and the detection engine
// (behavioral judgment).
//
// Providers implement a small chat-completion interface. Callers pass
// the full conversation each call; providers hold no state beyond the
// API client.
package agent
