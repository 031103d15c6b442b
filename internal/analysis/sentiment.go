// Package analysis derives a coarse mood score and a crisis-language flag
// from transcribed speech. Both heuristics are pure functions: any input,
// including empty, produces a valid result and never panics.
package analysis

import (
	"math"
	"strings"

	"github.com/neurosync-ai/backend/internal/models"
)

// Sentiment is a provider-assigned label for one transcript segment.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// Keyword lists for the lexicon scorer. Matching is substring containment
// over lowercased whitespace tokens, so "excit" catches excited/exciting.
var (
	positiveKeywords = []string{
		"happy", "joy", "grateful", "great", "good", "love", "excit",
		"calm", "hope", "proud", "relax", "wonderful", "amazing",
		"peace", "confident", "motivat",
	}
	negativeKeywords = []string{
		"sad", "angry", "anxi", "stress", "depress", "tired", "worri",
		"afraid", "lonely", "hopeless", "awful", "terrible", "hate",
		"hurt", "pain", "overwhelm", "scared", "cry",
	}
)

// ScoreText scores raw transcript text with the lexicon heuristic.
//
// A token matching both lists is counted in both categories (e.g. "hopeless"
// contains "hope" and "hopeless"); the derived neutral count is clamped at
// zero rather than going negative in that case. Overall maps the
// positive/negative ratio onto a 1-5 scale: 3 + 20*(pos-neg)/words, clamped.
func ScoreText(text string) models.MoodScore {
	words := strings.Fields(strings.ToLower(text))
	total := len(words)
	if total == 0 {
		return models.MoodScore{Overall: 3.0}
	}

	var positive, negative int
	for _, w := range words {
		if containsAny(w, positiveKeywords) {
			positive++
		}
		if containsAny(w, negativeKeywords) {
			negative++
		}
	}

	neutral := total - positive - negative
	if neutral < 0 {
		neutral = 0
	}

	ratio := float64(positive-negative) / float64(total)
	return models.MoodScore{
		Overall:    round1(clamp(3 + ratio*20)),
		Positive:   positive,
		Negative:   negative,
		Neutral:    neutral,
		TextLength: total,
	}
}

// ScoreSegments scores provider-labeled segments. The unit count in the
// result is the number of segments, not words. Overall is
// 1 + 4*positiveRatio - 2*negativeRatio, clamped to [1, 5].
func ScoreSegments(labels []Sentiment) models.MoodScore {
	total := len(labels)
	if total == 0 {
		return models.MoodScore{Overall: 3.0}
	}

	var positive, negative, neutral int
	for _, l := range labels {
		switch l {
		case SentimentPositive:
			positive++
		case SentimentNegative:
			negative++
		case SentimentNeutral:
			neutral++
		}
	}

	positiveRatio := float64(positive) / float64(total)
	negativeRatio := float64(negative) / float64(total)
	return models.MoodScore{
		Overall:    round1(clamp(1 + positiveRatio*4 - negativeRatio*2)),
		Positive:   positive,
		Negative:   negative,
		Neutral:    neutral,
		TextLength: total,
	}
}

func containsAny(token string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(token, k) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	return math.Max(1.0, math.Min(5.0, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
