package control

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultRetention is how long terminal sessions stay in memory
	// before archival.
	DefaultRetention = 24 * time.Hour

	// DefaultSweepSchedule runs the janitor hourly.
	DefaultSweepSchedule = "@every 1h"
)

// ArchiveRecord is the on-disk form of an archived session. Terminal
// sessions are evicted from the registry only after their full record,
// adversary included, lands in the archive directory.
type ArchiveRecord struct {
	Snapshot  Snapshot               `json:"snapshot"`
	Config    map[string]interface{} `json:"config,omitempty"`
	Adversary string                 `json:"adversary,omitempty"`
	Strategy  string                 `json:"strategy,omitempty"`
	Commands  []Command              `json:"commands,omitempty"`
	Events    []SabotageEvent        `json:"events,omitempty"`
}

// Janitor archives terminal sessions past their retention window
type Janitor struct {
	registry   *Registry
	archiveDir string
	retention  time.Duration
	cron       *cron.Cron
	entryID    cron.EntryID
}

// JanitorConfig holds janitor configuration
type JanitorConfig struct {
	Registry   *Registry
	ArchiveDir string
	Retention  time.Duration
	Schedule   string // cron spec, e.g. "@every 1h"
}

// NewJanitor creates a janitor for the given registry
func NewJanitor(cfg JanitorConfig) (*Janitor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.ArchiveDir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	j := &Janitor{
		registry:   cfg.Registry,
		archiveDir: cfg.ArchiveDir,
		retention:  retention,
		cron:       cron.New(),
	}

	entryID, err := j.cron.AddFunc(schedule, func() {
		if _, err := j.Sweep(); err != nil {
			log.Error().Err(err).Msg("Janitor sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	j.entryID = entryID

	return j, nil
}

// Start begins scheduled sweeps
func (j *Janitor) Start() {
	j.cron.Start()
	log.Info().
		Dur("retention", j.retention).
		Str("dir", j.archiveDir).
		Msg("Session janitor started")
}

// Stop halts scheduled sweeps, waiting for an in-flight sweep
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Sweep archives and evicts terminal sessions older than the retention
// window. A session is evicted only after its archive file landed;
// failed writes keep the session in the registry for the next sweep.
// Returns the number of sessions archived.
func (j *Janitor) Sweep() (int, error) {
	cutoff := time.Now().Add(-j.retention)
	records := j.registry.terminalBefore(cutoff)

	archived := 0
	for _, record := range records {
		if err := j.writeArchive(record); err != nil {
			log.Error().
				Str("session_id", record.Snapshot.ID).
				Err(err).
				Msg("Failed to archive session, keeping it for the next sweep")
			continue
		}
		j.registry.evict(record.Snapshot.ID)
		archived++
	}

	if archived > 0 {
		log.Info().Int("archived", archived).Msg("Janitor sweep completed")
	}
	return archived, nil
}

func (j *Janitor) writeArchive(record ArchiveRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive record: %w", err)
	}

	path := filepath.Join(j.archiveDir, record.Snapshot.ID+".json")
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename archive file: %w", err)
	}
	return nil
}

// terminalBefore returns full archive records for terminal sessions
// that ended before cutoff. Sessions stay in the registry; eviction is
// a separate step taken only after the archive is safely on disk.
// Terminal state is final, so the copied records cannot go stale
// between collection and eviction.
func (r *Registry) terminalBefore(cutoff time.Time) []ArchiveRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ArchiveRecord
	for _, state := range r.sessions {
		if !state.status.IsTerminal() {
			continue
		}
		if state.endedAt == nil || state.endedAt.After(cutoff) {
			continue
		}

		record := ArchiveRecord{
			Snapshot: state.snapshot(),
			Config:   state.config,
			Events:   append([]SabotageEvent(nil), state.events...),
		}
		if state.assignment != nil {
			record.Adversary = state.assignment.Adversary
			record.Strategy = state.assignment.Strategy.Tag
		}
		for i, cmd := range state.commands {
			record.Commands = append(record.Commands, Command{
				Index:     i,
				Agent:     cmd.agent,
				Text:      cmd.text,
				QueuedAt:  cmd.queuedAt,
				Delivered: cmd.delivered,
			})
		}

		out = append(out, record)
	}
	return out
}

func (r *Registry) evict(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
