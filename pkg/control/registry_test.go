package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karouh/molehunt/pkg/sabotage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(Config{Seed: 42})
}

func startSession(t *testing.T, r *Registry, id string, participants ...string) StartResult {
	t.Helper()
	if participants == nil {
		participants = []string{"alice", "bob", "carol"}
	}
	result, err := r.Start(context.Background(), id, participants, nil)
	require.NoError(t, err)
	return result
}

func TestStart(t *testing.T) {
	t.Run("should create session in running state", func(t *testing.T) {
		r := newTestRegistry(t)
		result := startSession(t, r, "s1")

		assert.Equal(t, "s1", result.SessionID)
		assert.Equal(t, StatusRunning, result.Status)
		assert.True(t, result.AdversaryAssigned)
		assert.NotEmpty(t, result.Strategy)

		snap, err := r.GetStatus("s1")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, snap.Status)
		assert.Equal(t, 0, snap.Turn)
	})

	t.Run("should reject duplicate session id", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		_, err := r.Start(context.Background(), "s1", []string{"a", "b"}, nil)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("should reject empty session id", func(t *testing.T) {
		r := newTestRegistry(t)
		_, err := r.Start(context.Background(), "", []string{"a", "b"}, nil)
		assert.Error(t, err)
	})

	t.Run("should skip adversary with fewer than two participants", func(t *testing.T) {
		r := newTestRegistry(t)
		result := startSession(t, r, "solo", "alice")

		assert.False(t, result.AdversaryAssigned)
		assert.Empty(t, result.Strategy)

		adversary, err := r.Adversary("solo")
		require.NoError(t, err)
		assert.Empty(t, adversary)
	})

	t.Run("should reject config failing validation", func(t *testing.T) {
		r := New(Config{Validator: rejectingValidator{}})
		_, err := r.Start(context.Background(), "s1", []string{"a", "b"}, map[string]interface{}{"x": 1})
		assert.Error(t, err)

		_, err = r.GetStatus("s1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

type rejectingValidator struct{}

func (rejectingValidator) Validate(map[string]interface{}) error {
	return errors.New("bad config")
}

func TestTransitions(t *testing.T) {
	t.Run("should allow pause then resume", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		status, err := r.Pause(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, StatusPaused, status)
		assert.True(t, r.IsPaused("s1"))

		status, err = r.Resume(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, status)
		assert.False(t, r.IsPaused("s1"))
	})

	t.Run("should reject double pause", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		_, err := r.Pause(context.Background(), "s1")
		require.NoError(t, err)

		status, err := r.Pause(context.Background(), "s1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusPaused, status)
	})

	t.Run("should reject resume while running", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		_, err := r.Resume(context.Background(), "s1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("should complete from paused", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		_, err := r.Pause(context.Background(), "s1")
		require.NoError(t, err)

		status, err := r.Complete(context.Background(), "s1", true)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, status)

		snap, err := r.GetStatus("s1")
		require.NoError(t, err)
		require.NotNil(t, snap.EndedAt)
	})

	t.Run("should fail from running", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		status, err := r.Complete(context.Background(), "s1", false)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, status)
	})

	t.Run("should reject everything from terminal states", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		_, err := r.Complete(context.Background(), "s1", true)
		require.NoError(t, err)

		_, err = r.Pause(context.Background(), "s1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = r.Resume(context.Background(), "s1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = r.Complete(context.Background(), "s1", false)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("should clear pause flag on terminal transition", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		_, err := r.Pause(context.Background(), "s1")
		require.NoError(t, err)
		require.True(t, r.IsPaused("s1"))

		_, err = r.Complete(context.Background(), "s1", false)
		require.NoError(t, err)
		assert.False(t, r.IsPaused("s1"))
	})

	t.Run("should report not found for unknown session", func(t *testing.T) {
		r := newTestRegistry(t)
		_, err := r.Pause(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateTurn(t *testing.T) {
	t.Run("should advance the counter", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		turn, err := r.UpdateTurn("s1", 3)
		require.NoError(t, err)
		assert.Equal(t, 3, turn)
	})

	t.Run("should clamp out of order updates", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		_, err := r.UpdateTurn("s1", 5)
		require.NoError(t, err)

		turn, err := r.UpdateTurn("s1", 2)
		require.NoError(t, err)
		assert.Equal(t, 5, turn)

		snap, err := r.GetStatus("s1")
		require.NoError(t, err)
		assert.Equal(t, 5, snap.Turn)
	})
}

func TestIsPausedUnknownSession(t *testing.T) {
	r := newTestRegistry(t)
	assert.False(t, r.IsPaused("ghost"))
}

func TestActiveSessions(t *testing.T) {
	r := newTestRegistry(t)
	startSession(t, r, "s1")
	startSession(t, r, "s2")
	startSession(t, r, "s3")

	_, err := r.Pause(context.Background(), "s2")
	require.NoError(t, err)
	_, err = r.Complete(context.Background(), "s3", true)
	require.NoError(t, err)

	active := r.ActiveSessions()
	require.Len(t, active, 2)

	ids := map[string]Status{}
	for _, snap := range active {
		ids[snap.ID] = snap.Status
	}
	assert.Equal(t, StatusRunning, ids["s1"])
	assert.Equal(t, StatusPaused, ids["s2"])
}

func TestGetInstructions(t *testing.T) {
	r := newTestRegistry(t)
	startSession(t, r, "s1")

	adversary, err := r.Adversary("s1")
	require.NoError(t, err)
	require.NotEmpty(t, adversary)

	t.Run("should return instructions only for the adversary", func(t *testing.T) {
		for _, agent := range []string{"alice", "bob", "carol"} {
			text, err := r.GetInstructions("s1", agent)
			require.NoError(t, err)
			if agent == adversary {
				assert.Contains(t, text, "SABOTAGE MISSION")
			} else {
				assert.Empty(t, text)
			}
		}
	})

	t.Run("should be idempotent", func(t *testing.T) {
		first, err := r.GetInstructions("s1", adversary)
		require.NoError(t, err)
		second, err := r.GetInstructions("s1", adversary)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestAdversaryFrequency(t *testing.T) {
	// Over many sessions each participant should be picked close to 1/N
	// of the time.
	r := newTestRegistry(t)
	participants := []string{"alice", "bob", "carol", "dave"}
	const trials = 2000

	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		id := fmt.Sprintf("s%d", i)
		startSession(t, r, id, participants...)
		adversary, err := r.Adversary(id)
		require.NoError(t, err)
		counts[adversary]++
	}

	expected := float64(trials) / float64(len(participants))
	for _, name := range participants {
		assert.InDelta(t, expected, float64(counts[name]), expected*0.25,
			"participant %s picked %d times", name, counts[name])
	}
}

func TestSnapshotNeverExposesAdversary(t *testing.T) {
	catalog, err := sabotage.NewCatalog([]sabotage.Strategy{
		{Tag: "t", Description: "d", Severity: 0.5, Instructions: "secret-text"},
	})
	require.NoError(t, err)

	r := New(Config{Catalog: catalog, Seed: 7})
	startSession(t, r, "s1")

	snap, err := r.GetStatus("s1")
	require.NoError(t, err)
	assert.True(t, snap.AdversaryAssigned)
	// The snapshot only says that an adversary exists, never who.
	assert.NotContains(t, fmt.Sprintf("%+v", snap), "secret-text")
}

func TestConcurrentTransitions(t *testing.T) {
	// Hammer pause/resume from many goroutines; the status must always
	// land on a state reachable through the transition graph.
	r := newTestRegistry(t)
	startSession(t, r, "s1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Pause(context.Background(), "s1") //nolint:errcheck
		}()
		go func() {
			defer wg.Done()
			r.Resume(context.Background(), "s1") //nolint:errcheck
		}()
	}
	wg.Wait()

	snap, err := r.GetStatus("s1")
	require.NoError(t, err)
	assert.Contains(t, []Status{StatusRunning, StatusPaused}, snap.Status)
	assert.Equal(t, snap.Status == StatusPaused, r.IsPaused("s1"))
}
