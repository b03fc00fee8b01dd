package classifier

import (
	"testing"
)

func TestHeuristicScoresMatchesKeywords(t *testing.T) {
	res := HeuristicScores("I am so HAPPY today, what a great day")

	if res.TopLabel != "joy" {
		t.Fatalf("TopLabel = %q, want joy", res.TopLabel)
	}
	if res.TopScore != 1.0 {
		t.Fatalf("TopScore = %v, want 1.0", res.TopScore)
	}
	if res.Scores["sadness"] != 0.0 {
		t.Fatalf("sadness = %v, want 0.0", res.Scores["sadness"])
	}
}

func TestHeuristicScoresCoversFixedLabelSet(t *testing.T) {
	res := HeuristicScores("nothing matches here")

	if len(res.Scores) != 5 {
		t.Fatalf("score map has %d labels, want 5", len(res.Scores))
	}
	for _, label := range []string{"joy", "sadness", "anger", "fear", "love"} {
		if _, ok := res.Scores[label]; !ok {
			t.Fatalf("missing label %q in fallback scores", label)
		}
	}
	// Nothing matched, so every score is zero and the first label wins.
	if res.TopLabel != "joy" || res.TopScore != 0.0 {
		t.Fatalf("top = (%q, %v), want (joy, 0.0)", res.TopLabel, res.TopScore)
	}
}

func TestHeuristicScoresPicksStrongestEmotion(t *testing.T) {
	res := HeuristicScores("i was scared and anxious all night")
	if res.TopLabel != "fear" {
		t.Fatalf("TopLabel = %q, want fear", res.TopLabel)
	}
}
