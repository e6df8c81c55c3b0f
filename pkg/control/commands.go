package control

import (
	"context"
	"fmt"
	"time"

	"github.com/karouh/molehunt/internal/observability"
	"github.com/karouh/molehunt/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Command is a read-only view of one queued instruction. Index is the
// position in the session's full append-only queue and stays stable
// for the session's lifetime.
type Command struct {
	Index     int       `json:"index"`
	Agent     string    `json:"agent"`
	Text      string    `json:"text"`
	QueuedAt  time.Time `json:"queued_at"`
	Delivered bool      `json:"delivered"`
}

// SendCommand appends an out-of-band instruction for one agent's next
// turn. Commands sent while paused stay queued untouched and are
// delivered on the first turn after resume.
func (r *Registry) SendCommand(ctx context.Context, id, agent, text string) error {
	ctx, span := tracing.StartSpan(
		tracing.WithSessionID(ctx, id),
		"molehunt.control",
		"control.send_command",
		attribute.String("session_id", id),
		attribute.String("agent", agent),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if agent == "" {
		return fmt.Errorf("command agent cannot be empty")
	}
	if text == "" {
		return fmt.Errorf("command text cannot be empty")
	}

	r.mu.Lock()
	state, exists := r.sessions[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	state.commands = append(state.commands, commandRecord{
		agent:    agent,
		text:     text,
		queuedAt: time.Now(),
	})
	pending := state.countPendingLocked()
	r.mu.Unlock()

	observability.RecordCommandQueued(id, pending)

	logger.Debug().
		Str("command_agent", agent).
		Int("pending", pending).
		Msg("Command queued")

	return nil
}

// PendingCommands returns undelivered commands in enqueue order. An
// empty agent returns the whole pending subsequence; otherwise only
// that agent's.
func (r *Registry) PendingCommands(id, agent string) ([]Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	var out []Command
	for i, cmd := range state.commands {
		if cmd.delivered {
			continue
		}
		if agent != "" && cmd.agent != agent {
			continue
		}
		out = append(out, Command{
			Index:     i,
			Agent:     cmd.agent,
			Text:      cmd.text,
			QueuedAt:  cmd.queuedAt,
			Delivered: false,
		})
	}
	return out, nil
}

// MarkDelivered flips the delivery flag at the given queue position.
// The flip is one-way; marking an already delivered command is a no-op.
func (r *Registry) MarkDelivered(id string, index int) error {
	r.mu.Lock()
	state, exists := r.sessions[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	if index < 0 || index >= len(state.commands) {
		r.mu.Unlock()
		return fmt.Errorf("index %d with queue length %d: %w", index, len(state.commands), ErrOutOfRange)
	}

	state.commands[index].delivered = true
	pending := state.countPendingLocked()
	r.mu.Unlock()

	observability.RecordCommandDelivered(id, pending)
	return nil
}

func (s *sessionState) countPendingLocked() int {
	count := 0
	for _, cmd := range s.commands {
		if !cmd.delivered {
			count++
		}
	}
	return count
}
