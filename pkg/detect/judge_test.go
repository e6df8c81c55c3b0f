package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karouh/molehunt/pkg/agent"
)

type fakeJudge struct {
	response string
	err      error
	lastReq  agent.Request
}

func (j *fakeJudge) Call(_ context.Context, request agent.Request) (*agent.Response, error) {
	j.lastReq = request
	if j.err != nil {
		return nil, j.err
	}
	return &agent.Response{Content: j.response}, nil
}

func (j *fakeJudge) Provider() string { return "fake" }

func TestAnalyzeWithJudge(t *testing.T) {
	t.Run("should fuse rule and judgment scores", func(t *testing.T) {
		judge := &fakeJudge{response: `{"planner": 0.0, "hacker": 1.0, "safecracker": 0.0, "getaway_driver": 0.0}`}
		d, err := New(Config{Judge: judge, JudgeModel: "test"})
		require.NoError(t, err)

		ruleOnly, err := New(Config{})
		require.NoError(t, err)
		baseline, err := ruleOnly.Analyze(context.Background(), heistEvidence())
		require.NoError(t, err)

		report, err := d.Analyze(context.Background(), heistEvidence())
		require.NoError(t, err)

		assert.False(t, report.Degraded)
		assert.Equal(t, "hacker", report.Suggested)
		// 60% rules, 40% judgment.
		expected := baseline.Scores["hacker"]*0.6 + 1.0*0.4
		assert.InDelta(t, expected, report.Scores["hacker"], 1e-9)
	})

	t.Run("should hand the judge the evidence summary", func(t *testing.T) {
		judge := &fakeJudge{response: `{}`}
		d, err := New(Config{Judge: judge, JudgeModel: "test"})
		require.NoError(t, err)

		_, err = d.Analyze(context.Background(), heistEvidence())
		require.NoError(t, err)

		prompt := judge.lastReq.Messages[0].Content
		assert.Contains(t, prompt, "TOP SUSPECTS")
		assert.Contains(t, prompt, "TOOL FAILURES")
		assert.Contains(t, prompt, "hacker: 2/2 tools failed")
		assert.Contains(t, prompt, "AGENT CONVERSATION")
	})

	t.Run("should parse fenced json", func(t *testing.T) {
		judge := &fakeJudge{response: "```json\n{\"planner\": 0.1, \"hacker\": 0.9, \"safecracker\": 0.1, \"getaway_driver\": 0.1}\n```"}
		d, err := New(Config{Judge: judge, JudgeModel: "test"})
		require.NoError(t, err)

		report, err := d.Analyze(context.Background(), heistEvidence())
		require.NoError(t, err)
		assert.False(t, report.Degraded)
	})

	t.Run("should clamp out of range judgment scores", func(t *testing.T) {
		judge := &fakeJudge{response: `{"planner": -3, "hacker": 7, "safecracker": 0, "getaway_driver": 0}`}
		d, err := New(Config{Judge: judge, JudgeModel: "test"})
		require.NoError(t, err)

		report, err := d.Analyze(context.Background(), heistEvidence())
		require.NoError(t, err)
		for name, score := range report.Scores {
			assert.GreaterOrEqual(t, score, 0.0, name)
			assert.LessOrEqual(t, score, 1.0, name)
		}
	})

	t.Run("should degrade silently on judge failure", func(t *testing.T) {
		judge := &fakeJudge{err: errors.New("connection refused")}
		d, err := New(Config{Judge: judge, JudgeModel: "test"})
		require.NoError(t, err)

		ruleOnly, err := New(Config{})
		require.NoError(t, err)
		baseline, err := ruleOnly.Analyze(context.Background(), heistEvidence())
		require.NoError(t, err)

		report, err := d.Analyze(context.Background(), heistEvidence())
		require.NoError(t, err)

		assert.True(t, report.Degraded)
		assert.Equal(t, baseline.Scores, report.Scores)
		assert.Equal(t, baseline.Suggested, report.Suggested)
	})

	t.Run("should degrade on unparsable response", func(t *testing.T) {
		judge := &fakeJudge{response: "I believe the hacker did it."}
		d, err := New(Config{Judge: judge, JudgeModel: "test"})
		require.NoError(t, err)

		report, err := d.Analyze(context.Background(), heistEvidence())
		require.NoError(t, err)
		assert.True(t, report.Degraded)
	})

	t.Run("should skip the judge with an empty transcript", func(t *testing.T) {
		judge := &fakeJudge{err: errors.New("should not be called")}
		d, err := New(Config{Judge: judge, JudgeModel: "test"})
		require.NoError(t, err)

		report, err := d.Analyze(context.Background(), Input{
			SessionID:    "empty",
			Participants: []string{"a", "b"},
		})
		require.NoError(t, err)
		assert.False(t, report.Degraded)
	})
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, stripCodeFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripCodeFences("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripCodeFences(`{"a": 1}`))
}
