package control

import (
	"context"
	"fmt"
	"time"

	"github.com/karouh/molehunt/internal/observability"
	"github.com/karouh/molehunt/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// SabotageEvent is one observed sabotage occurrence. The log is
// informational only; it feeds the sabotage score but never the
// outcome classification.
type SabotageEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Severity    float64   `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
}

// RecordSabotage appends an event to the session's sabotage log
func (r *Registry) RecordSabotage(ctx context.Context, id, eventType, description string, severity float64) (SabotageEvent, error) {
	ctx, span := tracing.StartSpan(
		tracing.WithSessionID(ctx, id),
		"molehunt.control",
		"control.record_sabotage",
		attribute.String("session_id", id),
		attribute.String("event_type", eventType),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if eventType == "" {
		return SabotageEvent{}, fmt.Errorf("event type cannot be empty")
	}
	if severity < 0 || severity > 1 {
		return SabotageEvent{}, fmt.Errorf("severity must be in [0, 1], got %v", severity)
	}

	eventID, err := gonanoid.New()
	if err != nil {
		return SabotageEvent{}, fmt.Errorf("failed to generate event id: %w", err)
	}

	event := SabotageEvent{
		ID:          eventID,
		Type:        eventType,
		Description: description,
		Severity:    severity,
		Timestamp:   time.Now(),
	}

	r.mu.Lock()
	state, exists := r.sessions[id]
	if !exists {
		r.mu.Unlock()
		return SabotageEvent{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	state.events = append(state.events, event)
	total := len(state.events)
	r.mu.Unlock()

	observability.RecordSabotageEvent(eventType)

	logger.Debug().
		Str("event_id", eventID).
		Str("event_type", eventType).
		Float64("severity", severity).
		Int("total_events", total).
		Msg("Sabotage event recorded")

	return event, nil
}

// SabotageEvents returns the session's event log in record order
func (r *Registry) SabotageEvents(id string) ([]SabotageEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	out := make([]SabotageEvent, len(state.events))
	copy(out, state.events)
	return out, nil
}

// SabotageScore is the sum of recorded event severities
func (r *Registry) SabotageScore(id string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.sessions[id]
	if !exists {
		return 0, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	score := 0.0
	for _, event := range state.events {
		score += event.Severity
	}
	return score, nil
}
