package app_test

import (
	"errors"
	"math"
	"testing"

	"answerlab/internal/app"
	"answerlab/internal/domain"
)

func TestSummarizeCountsOutcomes(t *testing.T) {
	tests := []struct {
		name string
		user []*int
		want domain.ResultSummary
	}{
		{
			name: "one wrong",
			user: choices(1, 3, 3),
			want: domain.ResultSummary{Correct: 2, Incorrect: 1, NoAnswer: 0, Total: 3},
		},
		{
			name: "one skipped",
			user: []*int{domain.Choice(1), nil, domain.Choice(3)},
			want: domain.ResultSummary{Correct: 2, Incorrect: 0, NoAnswer: 1, Total: 3},
		},
		{
			name: "all blank",
			user: []*int{nil, nil, nil},
			want: domain.ResultSummary{NoAnswer: 3, Total: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := sheetWith(choices(1, 2, 3), tt.user)
			got := app.Summarize(sheet)
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
			if got.Correct+got.Incorrect+got.NoAnswer != got.Total {
				t.Fatalf("counts do not sum to total: %+v", got)
			}
		})
	}
}

func TestSummarizeIsIdempotentAndPure(t *testing.T) {
	sheet := sheetWith(choices(1, 2, 3), choices(1, 3, 3))
	before := sheet.Clone()

	first := app.Summarize(sheet)
	second := app.Summarize(sheet)
	if first != second {
		t.Fatalf("expected identical summaries, got %+v and %+v", first, second)
	}
	for i := range sheet.Answers {
		if *sheet.Answers[i].UserAnswer != *before.Answers[i].UserAnswer {
			t.Fatalf("summarize mutated entry %d", i)
		}
	}
}

func TestSummarizeUsesDeclaredTotal(t *testing.T) {
	sheet := sheetWith(choices(1), choices(1))
	sheet.QuestionCount = 4
	got := app.Summarize(sheet)
	if got.Total != 4 || got.Correct != 1 {
		t.Fatalf("expected total from question count, got %+v", got)
	}
}

func TestSummarizeAnsweredWithoutKeyIsIncorrect(t *testing.T) {
	sheet := sheetWith([]*int{nil}, choices(2))
	got := app.Summarize(sheet)
	if got.Incorrect != 1 {
		t.Fatalf("expected incorrect when key is unset, got %+v", got)
	}
}

func TestEvaluateRejectsIncompleteKey(t *testing.T) {
	sheet := sheetWith([]*int{domain.Choice(1), nil, domain.Choice(3)}, choices(1, 2, 3))
	if app.Checkable(sheet) {
		t.Fatalf("expected sheet with missing key to be uncheckable")
	}
	if _, err := app.Evaluate(sheet); !errors.Is(err, domain.ErrIncompleteKey) {
		t.Fatalf("expected incomplete key error, got %v", err)
	}

	sheet.Answers[1].KeyAnswer = domain.Choice(2)
	summary, err := app.Evaluate(sheet)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if summary.Correct != 3 {
		t.Fatalf("expected 3 correct, got %+v", summary)
	}
}

func TestScoreWithPenalty(t *testing.T) {
	summary := domain.ResultSummary{Correct: 2, Incorrect: 1, NoAnswer: 0, Total: 3}
	weights := domain.Weights{Correct: 1, Incorrect: -0.25, NoAnswer: 0}

	if got := app.Score(summary, weights); math.Abs(got-1.75) > 1e-9 {
		t.Fatalf("expected 1.75, got %v", got)
	}
	if got := app.MaxScore(summary, weights); got != 3 {
		t.Fatalf("expected max 3, got %v", got)
	}
}

func TestScoreCanExceedMax(t *testing.T) {
	summary := domain.ResultSummary{Correct: 1, NoAnswer: 1, Total: 2}
	weights := domain.Weights{Correct: 1, NoAnswer: 2}
	if got, ceiling := app.Score(summary, weights), app.MaxScore(summary, weights); got <= ceiling {
		t.Fatalf("expected score %v above display max %v", got, ceiling)
	}
}

func TestDefaultWeightsCountCorrect(t *testing.T) {
	summary := domain.ResultSummary{Correct: 5, Incorrect: 3, NoAnswer: 2, Total: 10}
	if got := app.Score(summary, app.DefaultWeights()); got != 5 {
		t.Fatalf("expected plain count 5, got %v", got)
	}
}

func TestParseWeightsFallsBack(t *testing.T) {
	tests := []struct {
		name                 string
		correct, wrong, none string
		want                 domain.Weights
	}{
		{"empty", "", "", "", domain.Weights{Correct: 1}},
		{"garbage", "abc", "x", "?", domain.Weights{Correct: 1}},
		{"infinite", "Inf", "-Inf", "NaN", domain.Weights{Correct: 1}},
		{"penalty", "4", "-1", "0", domain.Weights{Correct: 4, Incorrect: -1}},
		{"fractional", " 0.5 ", "-0.25", "0.1", domain.Weights{Correct: 0.5, Incorrect: -0.25, NoAnswer: 0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := app.ParseWeights(tt.correct, tt.wrong, tt.none); got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestScoreCardRows(t *testing.T) {
	summary := domain.ResultSummary{Correct: 2, Incorrect: 1, Total: 3}
	card := app.NewScoreCard(summary, domain.Weights{Correct: 2, Incorrect: -1})

	if len(card.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(card.Rows))
	}
	if card.Rows[0].Category != app.CategoryCorrect || card.Rows[0].Score != 4 {
		t.Fatalf("unexpected correct row %+v", card.Rows[0])
	}
	if card.Rows[1].Score != -1 {
		t.Fatalf("unexpected incorrect row %+v", card.Rows[1])
	}
	if card.Total != 3 || card.Max != 6 {
		t.Fatalf("expected total 3 of 6, got %v of %v", card.Total, card.Max)
	}
}

func choices(values ...int) []*int {
	out := make([]*int, len(values))
	for i, v := range values {
		out[i] = domain.Choice(v)
	}
	return out
}

func sheetWith(key, user []*int) domain.Sheet {
	answers := make([]domain.AnswerEntry, len(key))
	for i := range key {
		answers[i] = domain.AnswerEntry{UserAnswer: user[i], KeyAnswer: key[i]}
	}
	return domain.Sheet{
		ID:            "sheet-1",
		Name:          "Quiz A",
		QuestionCount: len(key),
		ChoiceCount:   4,
		Answers:       answers,
	}
}
