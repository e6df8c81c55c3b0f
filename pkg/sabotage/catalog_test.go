package sabotage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	strategies := catalog.Strategies()

	require.Len(t, strategies, 5)

	tags := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		tags[s.Tag] = s
	}

	for _, tag := range []string{"timing-errors", "false-information", "coordination-chaos", "subtle-delays", "wrong-tools"} {
		s, ok := tags[tag]
		require.True(t, ok, "missing strategy %s", tag)
		assert.NotEmpty(t, s.Instructions)
		assert.Greater(t, s.Severity, 0.0)
		assert.LessOrEqual(t, s.Severity, 1.0)
	}

	assert.Equal(t, 0.9, tags["false-information"].Severity)
	assert.Equal(t, 0.6, tags["subtle-delays"].Severity)
}

func TestNewCatalogValidation(t *testing.T) {
	t.Run("should reject empty set", func(t *testing.T) {
		_, err := NewCatalog(nil)
		assert.Error(t, err)
	})

	t.Run("should reject duplicate tags", func(t *testing.T) {
		_, err := NewCatalog([]Strategy{
			{Tag: "a", Severity: 0.5, Instructions: "x"},
			{Tag: "a", Severity: 0.5, Instructions: "y"},
		})
		assert.ErrorContains(t, err, "duplicate tag")
	})

	t.Run("should reject out-of-range severity", func(t *testing.T) {
		_, err := NewCatalog([]Strategy{{Tag: "a", Severity: 1.5, Instructions: "x"}})
		assert.ErrorContains(t, err, "severity")
	})

	t.Run("should reject empty instructions", func(t *testing.T) {
		_, err := NewCatalog([]Strategy{{Tag: "a", Severity: 0.5}})
		assert.ErrorContains(t, err, "instructions")
	})
}

func TestReplace(t *testing.T) {
	catalog := DefaultCatalog()

	err := catalog.Replace([]Strategy{{Tag: "custom", Severity: 0.4, Instructions: "be sneaky"}})
	require.NoError(t, err)

	strategies := catalog.Strategies()
	require.Len(t, strategies, 1)
	assert.Equal(t, "custom", strategies[0].Tag)

	// Invalid replacement keeps the current set.
	err = catalog.Replace(nil)
	assert.Error(t, err)
	assert.Len(t, catalog.Strategies(), 1)
}

func TestReplaceDoesNotAffectExistingAssignment(t *testing.T) {
	catalog := DefaultCatalog()
	rng := rand.New(rand.NewSource(7))

	assignment := catalog.Assign(rng, []string{"planner", "hacker"})
	require.NotNil(t, assignment)
	before := assignment.Strategy

	require.NoError(t, catalog.Replace([]Strategy{{Tag: "custom", Severity: 0.4, Instructions: "be sneaky"}}))

	assert.Equal(t, before, assignment.Strategy)
}

func TestStrategyLookup(t *testing.T) {
	catalog := DefaultCatalog()

	s, ok := catalog.Strategy("wrong-tools")
	require.True(t, ok)
	assert.Equal(t, "wrong-tools", s.Tag)

	_, ok = catalog.Strategy("nonexistent")
	assert.False(t, ok)
}
