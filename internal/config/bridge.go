package config

import (
	"github.com/karouh/molehunt/pkg/detect"
	"github.com/karouh/molehunt/pkg/runner"
)

// ToDetectConfig maps the typed detection settings onto the detection
// engine's config. The caller supplies the judge provider and logger;
// everything declarative comes from here.
func (c DetectionConfig) ToDetectConfig() detect.Config {
	weights := detect.Weights{
		ToolUsage:          c.ToolUsageWeight,
		Timing:             c.TimingWeight,
		MessageAnomaly:     c.MessageAnomalyWeight,
		InformationQuality: c.InformationQualityWeight,
	}
	return detect.Config{
		Weights:          &weights,
		Direction:        detect.Direction(c.Direction),
		JudgeModel:       c.JudgeModel,
		JudgeTemperature: c.JudgeTemperature,
		JudgeMaxTokens:   c.JudgeMaxTokens,
	}
}

// ToRunnerConfig maps the typed runner settings onto a runner config
// for one session. The caller fills in the session ID and the
// registry, store, provider, and tool collaborators.
func (c RunnerConfig) ToRunnerConfig() runner.Config {
	return runner.Config{
		Model:             c.Model,
		Temperature:       c.Temperature,
		MaxTokens:         c.MaxTokens,
		MaxTurns:          c.MaxTurns,
		MaxRetries:        c.MaxRetries,
		RetryBackoff:      c.RetryBackoff,
		PausePollInterval: c.PausePollInterval,
		TurnTimeout:       c.TurnTimeout,
	}
}
