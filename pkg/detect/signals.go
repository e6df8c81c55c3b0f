package detect

import (
	"math"
	"strings"

	"github.com/karouh/molehunt/pkg/store"
)

var timingKeywords = []string{
	"minute", "hour", "second", "time", "timing", "quick", "slow",
	"rush", "wait", "delay", "hurry", "patience", "schedule",
}

var contradictionKeywords = []string{
	"actually", "wait", "no", "wrong", "mistake", "correct",
	"change", "nevermind", "sorry", "my bad",
}

var hesitationMarkers = []string{
	"hmm", "uh", "um", "wait", "let me think", "actually",
}

var concreteKeywords = []string{
	"camera", "guard", "vault", "door", "window", "sensor",
	"alarm", "code", "key", "lock", "route", "entrance",
}

var vagueKeywords = []string{
	"maybe", "probably", "might", "could be", "not sure",
	"i think", "possibly", "perhaps", "unclear",
}

// toolUsageScores flags agents whose tool success rate deviates from
// the group average, in the configured direction.
func (d *Detector) toolUsageScores(records []store.ToolRecord, participants []string) map[string]float64 {
	scores := zeroScores(participants)
	if len(records) == 0 {
		return scores
	}

	successes := make(map[string]int)
	totals := make(map[string]int)
	for _, record := range records {
		totals[record.Agent]++
		if record.Success {
			successes[record.Agent]++
		}
	}

	avgRate := 0.0
	counted := 0
	for agentName, total := range totals {
		if total > 0 {
			avgRate += float64(successes[agentName]) / float64(total)
			counted++
		}
	}
	if counted == 0 {
		return scores
	}
	avgRate /= float64(counted)
	if avgRate == 0 {
		return scores
	}

	for agentName, total := range totals {
		if total == 0 {
			continue
		}
		rate := float64(successes[agentName]) / float64(total)

		var deviation float64
		switch d.direction {
		case FlagHighSuccess:
			if rate > avgRate {
				deviation = (rate - avgRate) / avgRate
			}
		default:
			if rate < avgRate {
				deviation = (avgRate - rate) / avgRate
			}
		}
		if deviation > 0 {
			if _, known := scores[agentName]; known {
				scores[agentName] = math.Min(deviation*1.5, 1.0)
			}
		}
	}
	return scores
}

// timingScores combines timing-related chatter with self-contradiction
// frequency, each normalized against the session maximum.
func timingScores(messages []store.Message, participants []string) map[string]float64 {
	scores := zeroScores(participants)

	timingMentions := make(map[string]int)
	contradictions := make(map[string]int)
	for _, msg := range messages {
		content := strings.ToLower(msg.Content)
		timingMentions[msg.Agent] += countKeywords(content, timingKeywords)
		contradictions[msg.Agent] += countKeywords(content, contradictionKeywords)
	}

	maxTiming := maxCount(timingMentions)
	maxContradictions := maxCount(contradictions)

	for _, p := range participants {
		var timingRatio, contradictionRatio float64
		if maxTiming > 0 {
			timingRatio = float64(timingMentions[p]) / float64(maxTiming)
		}
		if maxContradictions > 0 {
			contradictionRatio = float64(contradictions[p]) / float64(maxContradictions)
		}
		scores[p] = timingRatio*0.5 + contradictionRatio*0.5
	}
	return scores
}

// messageAnomalyScores flags agents whose message lengths deviate from
// the session mean or who hedge with hesitation markers.
func messageAnomalyScores(messages []store.Message, participants []string) map[string]float64 {
	scores := zeroScores(participants)

	byAgent := make(map[string][]string)
	var allLengths []int
	for _, msg := range messages {
		byAgent[msg.Agent] = append(byAgent[msg.Agent], msg.Content)
		allLengths = append(allLengths, len(msg.Content))
	}
	if len(allLengths) == 0 {
		return scores
	}

	sum := 0
	for _, l := range allLengths {
		sum += l
	}
	mean := float64(sum) / float64(len(allLengths))

	variance := 0.0
	for _, l := range allLengths {
		variance += (float64(l) - mean) * (float64(l) - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(allLengths)))

	for _, p := range participants {
		msgs := byAgent[p]
		if len(msgs) == 0 {
			continue
		}

		agentSum := 0
		for _, m := range msgs {
			agentSum += len(m)
		}
		agentMean := float64(agentSum) / float64(len(msgs))

		if stdDev > 0 {
			deviation := math.Abs(agentMean-mean) / stdDev
			scores[p] = math.Min(deviation/2.0, 1.0)
		}

		hesitations := 0
		for _, m := range msgs {
			lower := strings.ToLower(m)
			for _, marker := range hesitationMarkers {
				if strings.Contains(lower, marker) {
					hesitations++
				}
			}
		}
		hesitationRatio := float64(hesitations) / float64(len(msgs))
		scores[p] = math.Max(scores[p], hesitationRatio)
	}
	return scores
}

// informationQualityScores measures how much of an agent's information
// vocabulary is vague rather than concrete.
func informationQualityScores(messages []store.Message, participants []string) map[string]float64 {
	scores := zeroScores(participants)

	concrete := make(map[string]int)
	vague := make(map[string]int)
	for _, msg := range messages {
		content := strings.ToLower(msg.Content)
		concrete[msg.Agent] += countKeywords(content, concreteKeywords)
		vague[msg.Agent] += countKeywords(content, vagueKeywords)
	}

	for _, p := range participants {
		total := concrete[p] + vague[p]
		if total == 0 {
			continue
		}
		scores[p] = float64(vague[p]) / float64(total)
	}
	return scores
}

func zeroScores(participants []string) map[string]float64 {
	scores := make(map[string]float64, len(participants))
	for _, p := range participants {
		scores[p] = 0
	}
	return scores
}

func countKeywords(content string, keywords []string) int {
	count := 0
	for _, keyword := range keywords {
		if strings.Contains(content, keyword) {
			count++
		}
	}
	return count
}

func maxCount(counts map[string]int) int {
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return max
}
