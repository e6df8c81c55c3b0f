package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/karouh/molehunt/internal/observability"
	"github.com/karouh/molehunt/internal/tracing"
	"github.com/karouh/molehunt/pkg/agent"
	"github.com/karouh/molehunt/pkg/control"
	"github.com/karouh/molehunt/pkg/store"
)

const (
	// DefaultPausePollInterval is how often the runner re-checks the
	// pause flag while blocked.
	DefaultPausePollInterval = 250 * time.Millisecond

	// DefaultTurnTimeout bounds a single provider call.
	DefaultTurnTimeout = 60 * time.Second

	// DefaultMaxRetries is how many times a transient provider error
	// is retried before the turn degrades.
	DefaultMaxRetries = 2

	// DefaultRetryBackoff is the initial wait before a retry; it
	// doubles per attempt.
	DefaultRetryBackoff = 500 * time.Millisecond

	defaultMaxTurns = 10
)

// Config holds runner configuration for one session
type Config struct {
	SessionID string

	Registry *control.Registry
	Store    *store.Store
	Provider agent.LLMProvider

	// Tools handles tool invocations; nil disables tools.
	Tools ToolInvoker

	Model       string
	Temperature float64
	MaxTokens   int

	// MaxTurns caps the number of full rounds; defaults to 10.
	MaxTurns int

	PausePollInterval time.Duration
	TurnTimeout       time.Duration

	// MaxRetries caps retries of transient provider errors per turn;
	// negative disables retrying.
	MaxRetries   int
	RetryBackoff time.Duration

	// BasePrompts maps agent name to its persona system prompt.
	BasePrompts map[string]string

	Logger zerolog.Logger
}

// RunResult summarizes one completed run
type RunResult struct {
	SessionID     string `json:"session_id"`
	TurnsExecuted int    `json:"turns_executed"`
	DegradedTurns int    `json:"degraded_turns"`
}

// Runner executes the turn loop for a single session
type Runner struct {
	cfg      Config
	registry *control.Registry
	store    *store.Store
	provider agent.LLMProvider

	pollInterval time.Duration
	turnTimeout  time.Duration
	maxTurns     int
	maxRetries   int
	retryBackoff time.Duration

	// moleBriefed tracks which agents already received their private
	// instructions; delivery happens at most once per agent.
	moleBriefed map[string]bool

	logger zerolog.Logger
}

// New creates a runner for one session
func New(cfg Config) (*Runner, error) {
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	pollInterval := cfg.PausePollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPausePollInterval
	}
	turnTimeout := cfg.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = DefaultRetryBackoff
	}

	return &Runner{
		cfg:          cfg,
		registry:     cfg.Registry,
		store:        cfg.Store,
		provider:     cfg.Provider,
		pollInterval: pollInterval,
		turnTimeout:  turnTimeout,
		maxTurns:     maxTurns,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		moleBriefed:  make(map[string]bool),
		logger:       cfg.Logger,
	}, nil
}

// Run executes turns until the session reaches a terminal state, the
// turn cap is hit, or ctx is canceled.
func (r *Runner) Run(ctx context.Context) (RunResult, error) {
	ctx = tracing.WithSessionID(ctx, r.cfg.SessionID)
	result := RunResult{SessionID: r.cfg.SessionID}

	snap, err := r.registry.GetStatus(r.cfg.SessionID)
	if err != nil {
		return result, fmt.Errorf("session lookup: %w", err)
	}

	for turn := 1; turn <= r.maxTurns; turn++ {
		for _, agentName := range snap.Participants {
			if err := r.waitWhileRunnable(ctx); err != nil {
				return result, err
			}

			// A terminal transition mid-round ends the run cleanly.
			current, err := r.registry.GetStatus(r.cfg.SessionID)
			if err != nil || !current.Status.IsActive() {
				return result, nil
			}

			if err := r.executeTurn(ctx, agentName, turn); err != nil {
				result.DegradedTurns++
				r.logger.Warn().
					Str("session_id", r.cfg.SessionID).
					Str("agent", agentName).
					Int("turn", turn).
					Err(err).
					Msg("Turn degraded")
			}
		}

		effective, err := r.registry.UpdateTurn(r.cfg.SessionID, turn)
		if err != nil {
			return result, fmt.Errorf("turn update: %w", err)
		}
		result.TurnsExecuted = effective
	}

	return result, nil
}

// waitWhileRunnable blocks while the session is paused, polling the
// flag at the configured interval.
func (r *Runner) waitWhileRunnable(ctx context.Context) error {
	for r.registry.IsPaused(r.cfg.SessionID) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
	return nil
}

// executeTurn runs one agent turn: prompt assembly, provider call,
// transcript persistence.
func (r *Runner) executeTurn(ctx context.Context, agentName string, turn int) error {
	ctx, span := tracing.StartSpan(
		tracing.WithAgent(ctx, agentName),
		"molehunt.runner",
		"runner.turn",
		attribute.String("session_id", r.cfg.SessionID),
		attribute.String("agent", agentName),
		attribute.Int("turn", turn),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	start := time.Now()

	systemPrompt, err := r.buildSystemPrompt(ctx, agentName)
	if err != nil {
		observability.RecordTurn(agentName, time.Since(start), true)
		return err
	}

	history, err := r.store.Messages(ctx, r.cfg.SessionID)
	if err != nil {
		observability.RecordTurn(agentName, time.Since(start), true)
		return fmt.Errorf("transcript read: %w", err)
	}

	request := agent.Request{
		Model:        r.cfg.Model,
		SystemPrompt: systemPrompt,
		Messages:     buildConversation(history, agentName),
		Temperature:  r.cfg.Temperature,
		MaxTokens:    r.cfg.MaxTokens,
	}

	response, err := r.callWithRetry(ctx, request)
	if err != nil {
		observability.RecordTurn(agentName, time.Since(start), true)
		return fmt.Errorf("provider call: %w: %v", control.ErrExternalService, err)
	}

	if err := r.store.AppendMessage(ctx, r.cfg.SessionID, store.Message{
		Agent:   agentName,
		Role:    "assistant",
		Content: response.Content,
		Turn:    turn,
	}); err != nil {
		observability.RecordTurn(agentName, time.Since(start), true)
		return fmt.Errorf("transcript write: %w", err)
	}

	observability.RecordTurn(agentName, time.Since(start), false)

	logger.Debug().
		Int("turn", turn).
		Int("response_len", len(response.Content)).
		Msg("Turn completed")

	return nil
}

// callWithRetry issues the provider call, retrying transient errors
// (rate limits, 5xx, resets) with exponential backoff up to the retry
// cap. Non-retryable errors and context cancellation fail immediately;
// an in-flight call is never re-issued after ctx is done.
func (r *Runner) callWithRetry(ctx context.Context, request agent.Request) (*agent.Response, error) {
	backoff := r.retryBackoff

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.turnTimeout)
		response, err := r.provider.Call(callCtx, request)
		cancel()
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !agent.IsRetryableError(err) || attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// buildSystemPrompt assembles the persona prompt plus any one-time
// private briefing and the head pending command for this agent.
func (r *Runner) buildSystemPrompt(ctx context.Context, agentName string) (string, error) {
	var parts []string

	if base, ok := r.cfg.BasePrompts[agentName]; ok && base != "" {
		parts = append(parts, base)
	} else {
		parts = append(parts, fmt.Sprintf("You are %s, a member of a team working on a shared operation. Coordinate with your teammates and report your progress each turn.", agentName))
	}

	if !r.moleBriefed[agentName] {
		instructions, err := r.registry.GetInstructions(r.cfg.SessionID, agentName)
		if err != nil {
			return "", fmt.Errorf("instruction lookup: %w", err)
		}
		if instructions != "" {
			parts = append(parts, instructions)
		}
		// Recorded even for non-adversaries so the lookup happens once.
		r.moleBriefed[agentName] = true
	}

	pending, err := r.registry.PendingCommands(r.cfg.SessionID, agentName)
	if err != nil {
		return "", fmt.Errorf("command lookup: %w", err)
	}
	if len(pending) > 0 {
		head := pending[0]
		if err := r.registry.MarkDelivered(r.cfg.SessionID, head.Index); err != nil {
			return "", fmt.Errorf("command delivery: %w", err)
		}
		parts = append(parts, "OVERRIDE INSTRUCTION: "+head.Text)
	}

	return strings.Join(parts, "\n\n"), nil
}

// buildConversation flattens the shared transcript into the calling
// agent's point of view: own entries become assistant turns, everyone
// else's become attributed user turns.
func buildConversation(history []store.Message, agentName string) []agent.ChatMessage {
	var out []agent.ChatMessage
	for _, msg := range history {
		if msg.Agent == agentName {
			out = append(out, agent.ChatMessage{Role: "assistant", Content: msg.Content})
		} else {
			out = append(out, agent.ChatMessage{
				Role:    "user",
				Content: fmt.Sprintf("[%s]: %s", msg.Agent, msg.Content),
			})
		}
	}
	if len(out) == 0 {
		out = append(out, agent.ChatMessage{Role: "user", Content: "Begin. Report your first action."})
	}
	return out
}
