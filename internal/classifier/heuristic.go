package classifier

import (
	"strings"
)

// fallbackKeywords drives the offline scorer. Label set is fixed; a label
// scores 1.0 when any of its keywords appears in the text.
var fallbackKeywords = map[string][]string{
	"joy":     {"happy", "great", "excited", "joy", "good"},
	"sadness": {"sad", "down", "blue", "cry", "lonely"},
	"anger":   {"angry", "mad", "furious", "rage"},
	"fear":    {"worried", "scared", "anxious", "afraid"},
	"love":    {"love", "grateful", "thankful"},
}

// fallbackLabels is the iteration order, which doubles as the tie-break:
// the first label with the top score wins.
var fallbackLabels = []string{"joy", "sadness", "anger", "fear", "love"}

// HeuristicScores is the degraded-mode classifier used when the API is
// unreachable.
func HeuristicScores(text string) Result {
	lowered := strings.ToLower(text)

	scores := make(map[string]float64, len(fallbackLabels))
	top := Result{Scores: scores}
	for i, label := range fallbackLabels {
		score := 0.0
		for _, kw := range fallbackKeywords[label] {
			if strings.Contains(lowered, kw) {
				score = 1.0
				break
			}
		}
		scores[label] = score
		if i == 0 || score > top.TopScore {
			top.TopLabel = label
			top.TopScore = score
		}
	}
	return top
}
