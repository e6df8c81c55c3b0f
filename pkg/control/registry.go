package control

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/karouh/molehunt/internal/observability"
	"github.com/karouh/molehunt/internal/tracing"
	"github.com/karouh/molehunt/pkg/sabotage"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ConfigValidator checks free-form session config documents at Start
type ConfigValidator interface {
	Validate(config map[string]interface{}) error
}

// sessionState is the single source of truth for one session. Every
// field is guarded by the registry mutex.
type sessionState struct {
	id           string
	status       Status
	participants []string
	config       map[string]interface{}
	turn         int
	pauseFlag    bool
	startedAt    time.Time
	endedAt      *time.Time
	assignment   *sabotage.Assignment
	commands     []commandRecord
	events       []SabotageEvent
}

type commandRecord struct {
	agent     string
	text      string
	queuedAt  time.Time
	delivered bool
}

// Snapshot is a read-only view of a session's public state. It never
// exposes the adversary.
type Snapshot struct {
	ID                string     `json:"id"`
	Status            Status     `json:"status"`
	Participants      []string   `json:"participants"`
	Turn              int        `json:"turn"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	AdversaryAssigned bool       `json:"adversary_assigned"`
}

// StartResult is returned by Start
type StartResult struct {
	SessionID         string `json:"session_id"`
	Status            Status `json:"status"`
	AdversaryAssigned bool   `json:"adversary_assigned"`
	Strategy          string `json:"strategy,omitempty"`
}

// Registry owns all mutable session state. Control operations from
// concurrent request handlers serialize on its single mutex, so no
// interleaving can observe a status outside the transition graph.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState

	catalog   *sabotage.Catalog
	validator ConfigValidator

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Config holds registry configuration
type Config struct {
	// Catalog supplies sabotage strategies; defaults to the built-in set.
	Catalog *sabotage.Catalog

	// Validator checks session config documents; nil disables validation.
	Validator ConfigValidator

	// Seed fixes the adversary selection RNG; 0 seeds from the clock.
	Seed int64
}

// New creates a session registry
func New(cfg Config) *Registry {
	observability.EnsureRegistered()

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = sabotage.DefaultCatalog()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Registry{
		sessions:  make(map[string]*sessionState),
		catalog:   catalog,
		validator: cfg.Validator,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Start creates a session in running state. Sessions with at least two
// participants get a random adversary assignment; smaller ones run
// with all adversary features inert.
func (r *Registry) Start(ctx context.Context, id string, participants []string, config map[string]interface{}) (StartResult, error) {
	ctx, span := tracing.StartSpan(
		tracing.WithSessionID(ctx, id),
		"molehunt.control",
		"control.start",
		attribute.String("session_id", id),
		attribute.Int("participants", len(participants)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if id == "" {
		return StartResult{}, fmt.Errorf("session id cannot be empty")
	}

	if r.validator != nil && config != nil {
		if err := r.validator.Validate(config); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return StartResult{}, fmt.Errorf("invalid session config: %w", err)
		}
	}

	r.rngMu.Lock()
	assignment := r.catalog.Assign(r.rng, participants)
	r.rngMu.Unlock()

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return StartResult{}, fmt.Errorf("session %q: %w", id, ErrAlreadyExists)
	}

	state := &sessionState{
		id:           id,
		status:       StatusRunning,
		participants: append([]string(nil), participants...),
		config:       config,
		startedAt:    time.Now(),
		assignment:   assignment,
	}
	r.sessions[id] = state
	active := r.countActiveLocked()
	r.mu.Unlock()

	observability.RecordSessionTransition(string(StatusRunning))
	observability.SetActiveSessions(active)

	result := StartResult{
		SessionID:         id,
		Status:            StatusRunning,
		AdversaryAssigned: assignment != nil,
	}
	if assignment != nil {
		result.Strategy = assignment.Strategy.Tag
	}

	logger.Info().
		Strs("participants", participants).
		Bool("adversary_assigned", result.AdversaryAssigned).
		Msg("Session started")

	return result, nil
}

// Pause suspends a running session. The turn runner observes the flag
// at its next poll point.
func (r *Registry) Pause(ctx context.Context, id string) (Status, error) {
	return r.transition(ctx, id, StatusPaused, "control.pause")
}

// Resume continues a paused session
func (r *Registry) Resume(ctx context.Context, id string) (Status, error) {
	return r.transition(ctx, id, StatusRunning, "control.resume")
}

// Complete moves a session to its terminal state and records the end
// time. No further transitions are accepted afterwards.
func (r *Registry) Complete(ctx context.Context, id string, success bool) (Status, error) {
	target := StatusCompleted
	if !success {
		target = StatusFailed
	}
	return r.transition(ctx, id, target, "control.complete")
}

// transition is the single mutation point for status changes
func (r *Registry) transition(ctx context.Context, id string, target Status, op string) (Status, error) {
	ctx, span := tracing.StartSpan(
		tracing.WithSessionID(ctx, id),
		"molehunt.control",
		op,
		attribute.String("session_id", id),
		attribute.String("target", string(target)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	r.mu.Lock()
	state, exists := r.sessions[id]
	if !exists {
		r.mu.Unlock()
		return "", fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	from := state.status
	if !from.CanTransition(target) {
		r.mu.Unlock()
		err := fmt.Errorf("%s -> %s: %w", from, target, ErrInvalidTransition)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return from, err
	}

	state.status = target
	state.pauseFlag = target == StatusPaused
	if target.IsTerminal() {
		now := time.Now()
		state.endedAt = &now
	}
	active := r.countActiveLocked()
	r.mu.Unlock()

	observability.RecordSessionTransition(string(target))
	observability.SetActiveSessions(active)

	logger.Info().
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("Session transitioned")

	return target, nil
}

// UpdateTurn sets the turn counter. Out-of-order updates are clamped
// to the maximum seen so the counter stays monotonic. Returns the
// effective turn.
func (r *Registry) UpdateTurn(id string, turn int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.sessions[id]
	if !exists {
		return 0, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	if turn > state.turn {
		state.turn = turn
	}
	return state.turn, nil
}

// IsPaused reports the pause flag. Unknown sessions report false so
// the turn runner treats them as simply not runnable.
func (r *Registry) IsPaused(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.sessions[id]
	if !exists {
		return false
	}
	return state.pauseFlag
}

// GetStatus returns a read-only snapshot of a session
func (r *Registry) GetStatus(id string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.sessions[id]
	if !exists {
		return Snapshot{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return state.snapshot(), nil
}

// ActiveSessions lists snapshots of all running or paused sessions
func (r *Registry) ActiveSessions() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Snapshot
	for _, state := range r.sessions {
		if state.status.IsActive() {
			out = append(out, state.snapshot())
		}
	}
	return out
}

// GetInstructions returns the adversary's private instruction text
// when agent is the adversary, otherwise "". This is a pure idempotent
// lookup; exactly-once injection is the turn runner's job.
func (r *Registry) GetInstructions(id, agent string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.sessions[id]
	if !exists {
		return "", fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return state.assignment.InstructionsFor(agent), nil
}

// Adversary returns the assigned adversary name, or "" when the
// session has no assignment.
func (r *Registry) Adversary(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.sessions[id]
	if !exists {
		return "", fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if state.assignment == nil {
		return "", nil
	}
	return state.assignment.Adversary, nil
}

// StrategyTag returns the assigned strategy tag, or "" when the
// session has no assignment.
func (r *Registry) StrategyTag(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.sessions[id]
	if !exists {
		return "", fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if state.assignment == nil {
		return "", nil
	}
	return state.assignment.Strategy.Tag, nil
}

func (r *Registry) countActiveLocked() int {
	count := 0
	for _, state := range r.sessions {
		if state.status.IsActive() {
			count++
		}
	}
	return count
}

func (s *sessionState) snapshot() Snapshot {
	return Snapshot{
		ID:                s.id,
		Status:            s.status,
		Participants:      append([]string(nil), s.participants...),
		Turn:              s.turn,
		StartedAt:         s.startedAt,
		EndedAt:           s.endedAt,
		AdversaryAssigned: s.assignment != nil,
	}
}
