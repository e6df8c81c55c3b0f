package control

// Status represents the lifecycle state of a session
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// allowedTransitions is the full lifecycle graph. Sessions are created
// directly into running, so idle only ever appears as a source.
var allowedTransitions = map[Status][]Status{
	StatusIdle:    {StatusRunning},
	StatusRunning: {StatusPaused, StatusCompleted, StatusFailed},
	StatusPaused:  {StatusRunning, StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from s to target is allowed
func (s Status) CanTransition(target Status) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for completed and failed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive returns true for running and paused
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusPaused
}
