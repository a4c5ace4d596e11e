package app

import (
	"math"
	"strconv"
	"strings"

	"answerlab/internal/domain"
)

// Category names one outcome bucket of a result summary.
type Category string

const (
	CategoryCorrect   Category = "correct"
	CategoryIncorrect Category = "incorrect"
	CategoryNoAnswer  Category = "noAnswer"
)

// Categories lists the outcome buckets in display order.
var Categories = []Category{CategoryCorrect, CategoryIncorrect, CategoryNoAnswer}

// DefaultWeights counts one point per correct answer and nothing else.
func DefaultWeights() domain.Weights {
	return domain.Weights{Correct: 1, Incorrect: 0, NoAnswer: 0}
}

// Summarize tallies the sheet's user answers against its key in one ordered scan.
// Total is the declared question count, not the number of entries scanned.
func Summarize(sheet domain.Sheet) domain.ResultSummary {
	summary := domain.ResultSummary{Total: sheet.QuestionCount}
	for _, entry := range sheet.Answers {
		switch {
		case entry.UserAnswer == nil:
			summary.NoAnswer++
		case entry.KeyAnswer != nil && *entry.UserAnswer == *entry.KeyAnswer:
			summary.Correct++
		default:
			summary.Incorrect++
		}
	}
	return summary
}

// Checkable reports whether every question has a key answer.
func Checkable(sheet domain.Sheet) bool {
	for _, entry := range sheet.Answers {
		if entry.KeyAnswer == nil {
			return false
		}
	}
	return true
}

// Evaluate gates Summarize on a complete answer key.
func Evaluate(sheet domain.Sheet) (domain.ResultSummary, error) {
	if !Checkable(sheet) {
		return domain.ResultSummary{}, domain.ErrIncompleteKey
	}
	return Summarize(sheet), nil
}

// Score applies per-outcome weights to a summary. Negative and fractional
// weights are allowed and nothing is clamped.
func Score(summary domain.ResultSummary, weights domain.Weights) float64 {
	return float64(summary.Correct)*weights.Correct +
		float64(summary.Incorrect)*weights.Incorrect +
		float64(summary.NoAnswer)*weights.NoAnswer
}

// MaxScore is the display ceiling total*correctWeight. Score may land on
// either side of it when the other weights are nonzero.
func MaxScore(summary domain.ResultSummary, weights domain.Weights) float64 {
	return float64(summary.Total) * weights.Correct
}

// ParseWeights resolves raw user input, falling back to the default weight
// for any field that is empty, unparsable or not finite.
func ParseWeights(correct, incorrect, noAnswer string) domain.Weights {
	def := DefaultWeights()
	return domain.Weights{
		Correct:   parseWeight(correct, def.Correct),
		Incorrect: parseWeight(incorrect, def.Incorrect),
		NoAnswer:  parseWeight(noAnswer, def.NoAnswer),
	}
}

func parseWeight(raw string, fallback float64) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// ScoreRow is one line of a score card.
type ScoreRow struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Weight   float64  `json:"weight"`
	Score    float64  `json:"score"`
}

// ScoreCard is a summary with its weighted breakdown.
type ScoreCard struct {
	Summary domain.ResultSummary `json:"summary"`
	Weights domain.Weights       `json:"weights"`
	Rows    []ScoreRow           `json:"rows"`
	Total   float64              `json:"total"`
	Max     float64              `json:"max"`
}

func NewScoreCard(summary domain.ResultSummary, weights domain.Weights) ScoreCard {
	rows := make([]ScoreRow, 0, len(Categories))
	for _, c := range Categories {
		count, weight := pick(summary, weights, c)
		rows = append(rows, ScoreRow{
			Category: c,
			Count:    count,
			Weight:   weight,
			Score:    float64(count) * weight,
		})
	}
	return ScoreCard{
		Summary: summary,
		Weights: weights,
		Rows:    rows,
		Total:   Score(summary, weights),
		Max:     MaxScore(summary, weights),
	}
}

func pick(summary domain.ResultSummary, weights domain.Weights, c Category) (int, float64) {
	switch c {
	case CategoryCorrect:
		return summary.Correct, weights.Correct
	case CategoryIncorrect:
		return summary.Incorrect, weights.Incorrect
	case CategoryNoAnswer:
		return summary.NoAnswer, weights.NoAnswer
	}
	return 0, 0
}
