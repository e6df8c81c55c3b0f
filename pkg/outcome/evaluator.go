package outcome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/karouh/molehunt/internal/tracing"
)

// Classification is the verdict for one session
type Classification string

const (
	ClassificationCorrect    Classification = "CORRECT"
	ClassificationIncorrect  Classification = "INCORRECT"
	ClassificationUndetected Classification = "UNDETECTED"
)

// Outcome is the frozen verdict for one session
type Outcome struct {
	SessionID      string         `json:"session_id"`
	Classification Classification `json:"classification"`
	Actual         string         `json:"actual,omitempty"`
	Guessed        string         `json:"guessed,omitempty"`
	Strategy       string         `json:"strategy,omitempty"`
	SabotageScore  float64        `json:"sabotage_score"`
	EvaluatedAt    time.Time      `json:"evaluated_at"`
}

// AdversarySource exposes the hidden assignment for evaluation. The
// session registry satisfies this.
type AdversarySource interface {
	Adversary(sessionID string) (string, error)
	StrategyTag(sessionID string) (string, error)
	SabotageScore(sessionID string) (float64, error)
}

// Evaluator scores mole guesses against the hidden assignment
type Evaluator struct {
	source AdversarySource
	logger zerolog.Logger

	mu       sync.Mutex
	guesses  map[string]string
	outcomes map[string]Outcome
}

// NewEvaluator creates an evaluator backed by the given source
func NewEvaluator(source AdversarySource, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		source:   source,
		logger:   logger,
		guesses:  make(map[string]string),
		outcomes: make(map[string]Outcome),
	}
}

// SubmitGuess records who the observers believe the adversary is.
// Later guesses overwrite earlier ones until the outcome freezes.
func (e *Evaluator) SubmitGuess(sessionID, guess string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if guess == "" {
		return fmt.Errorf("guess cannot be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, frozen := e.outcomes[sessionID]; frozen {
		return fmt.Errorf("outcome for session %q is already frozen", sessionID)
	}
	e.guesses[sessionID] = guess
	return nil
}

// Evaluate freezes and returns the session's outcome. Repeated calls
// return the identical frozen value.
func (e *Evaluator) Evaluate(ctx context.Context, sessionID string) (Outcome, error) {
	_, span := tracing.StartSpan(
		tracing.WithSessionID(ctx, sessionID),
		"molehunt.outcome",
		"outcome.evaluate",
		attribute.String("session_id", sessionID),
	)
	defer span.End()

	e.mu.Lock()
	if frozen, ok := e.outcomes[sessionID]; ok {
		e.mu.Unlock()
		return frozen, nil
	}
	guess := e.guesses[sessionID]
	e.mu.Unlock()

	actual, err := e.source.Adversary(sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("adversary lookup: %w", err)
	}
	strategy, err := e.source.StrategyTag(sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("strategy lookup: %w", err)
	}
	score, err := e.source.SabotageScore(sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("sabotage score lookup: %w", err)
	}

	classification := ClassificationUndetected
	if actual != "" && guess != "" {
		if guess == actual {
			classification = ClassificationCorrect
		} else {
			classification = ClassificationIncorrect
		}
	}

	result := Outcome{
		SessionID:      sessionID,
		Classification: classification,
		Actual:         actual,
		Guessed:        guess,
		Strategy:       strategy,
		SabotageScore:  score,
		EvaluatedAt:    time.Now(),
	}

	e.mu.Lock()
	// Another evaluation may have frozen first; the earliest wins.
	if frozen, ok := e.outcomes[sessionID]; ok {
		e.mu.Unlock()
		return frozen, nil
	}
	e.outcomes[sessionID] = result
	e.mu.Unlock()

	e.logger.Info().
		Str("session_id", sessionID).
		Str("classification", string(classification)).
		Float64("sabotage_score", score).
		Msg("Session outcome frozen")

	return result, nil
}

// Outcome returns the frozen outcome, if any
func (e *Evaluator) Outcome(sessionID string) (Outcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out, ok := e.outcomes[sessionID]
	return out, ok
}
