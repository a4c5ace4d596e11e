package domain

import "time"

// Role selects which of the two parallel answer tracks a mutation targets.
type Role int

const (
	// RoleUser is the user's own attempt.
	RoleUser Role = iota
	// RoleKey is the authoritative answer key.
	RoleKey
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleKey:
		return "key"
	default:
		return "unknown"
	}
}

// AnswerEntry is the state of one question. A nil choice means unset.
type AnswerEntry struct {
	UserAnswer *int `json:"ua"`
	KeyAnswer  *int `json:"aa"`
}

// Choice returns a pointer to a 1-based choice index.
func Choice(n int) *int {
	return &n
}

// Sheet is a named set of multiple-choice questions with an attempt and a key.
type Sheet struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	QuestionCount int           `json:"questionCount"`
	ChoiceCount   int           `json:"choiceCount"`
	Answers       []AnswerEntry `json:"answers"`
	UpdatedAt     int64         `json:"updatedAt"` // epoch milliseconds
}

// Updated returns UpdatedAt as a time.
func (s Sheet) Updated() time.Time {
	return time.UnixMilli(s.UpdatedAt)
}

// Clone returns a copy whose answers slice is not shared with s.
func (s Sheet) Clone() Sheet {
	out := s
	out.Answers = make([]AnswerEntry, len(s.Answers))
	copy(out.Answers, s.Answers)
	return out
}

// BlankAnswers builds count entries with both roles unset.
func BlankAnswers(count int) []AnswerEntry {
	if count < 0 {
		count = 0
	}
	return make([]AnswerEntry, count)
}

// SheetPayload is validated input for creating a sheet.
type SheetPayload struct {
	Name          string `json:"name"`
	QuestionCount int    `json:"questionCount"`
	ChoiceCount   int    `json:"choiceCount"`
}

// ResultSummary counts outcomes of a sheet against its key.
type ResultSummary struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	NoAnswer  int `json:"noAnswer"`
	Total     int `json:"total"`
}

// Weights are the per-outcome multipliers used to compute a score.
type Weights struct {
	Correct   float64 `json:"correct"`
	Incorrect float64 `json:"incorrect"`
	NoAnswer  float64 `json:"noAnswer"`
}
