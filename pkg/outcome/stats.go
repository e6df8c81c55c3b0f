package outcome

// GameStats aggregates frozen outcomes across sessions
type GameStats struct {
	Sessions   int `json:"sessions"`
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Undetected int `json:"undetected"`

	// DetectionRate is Correct / Sessions, 0 with no sessions.
	DetectionRate float64 `json:"detection_rate"`

	// ByStrategy counts how often each sabotage strategy was caught.
	ByStrategy map[string]StrategyStats `json:"by_strategy"`
}

// StrategyStats tracks detection performance for one strategy
type StrategyStats struct {
	Sessions int `json:"sessions"`
	Caught   int `json:"caught"`
}

// Stats computes aggregate statistics over all frozen outcomes
func (e *Evaluator) Stats() GameStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := GameStats{ByStrategy: make(map[string]StrategyStats)}
	for _, out := range e.outcomes {
		stats.Sessions++
		switch out.Classification {
		case ClassificationCorrect:
			stats.Correct++
		case ClassificationIncorrect:
			stats.Incorrect++
		default:
			stats.Undetected++
		}

		if out.Strategy != "" {
			s := stats.ByStrategy[out.Strategy]
			s.Sessions++
			if out.Classification == ClassificationCorrect {
				s.Caught++
			}
			stats.ByStrategy[out.Strategy] = s
		}
	}

	if stats.Sessions > 0 {
		stats.DetectionRate = float64(stats.Correct) / float64(stats.Sessions)
	}
	return stats
}
