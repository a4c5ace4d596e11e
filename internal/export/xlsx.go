// Package export writes sheets to spreadsheet workbooks.
package export

import (
	"io"
	"strconv"
	"strings"

	"answerlab/internal/app"
	"answerlab/internal/domain"
	"github.com/xuri/excelize/v2"
)

// IndexSheet is the name of the overview worksheet.
const IndexSheet = "Sheets"

var indexHeader = []interface{}{"Name", "Questions", "Choices", "Correct", "Incorrect", "No answer", "Score", "Max", "Updated"}

var answerHeader = []interface{}{"Question", "Answer", "Key", "Result"}

// Workbook builds a workbook with an overview row per sheet and one
// worksheet per sheet listing each question. Scores are only filled in for
// sheets with a complete key.
func Workbook(sheets []domain.Sheet, weights domain.Weights) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", IndexSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(IndexSheet, "A1", &indexHeader); err != nil {
		f.Close()
		return nil, err
	}

	used := map[string]bool{strings.ToLower(IndexSheet): true}
	for i, sheet := range sheets {
		row := []interface{}{sheet.Name, sheet.QuestionCount, sheet.ChoiceCount}
		if summary, err := app.Evaluate(sheet); err == nil {
			row = append(row, summary.Correct, summary.Incorrect, summary.NoAnswer,
				app.Score(summary, weights), app.MaxScore(summary, weights))
		} else {
			row = append(row, "", "", "", "", "")
		}
		row = append(row, sheet.Updated().UTC().Format("2006-01-02 15:04:05"))

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(IndexSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeAnswers(f, worksheetName(sheet.Name, used), sheet); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write streams the workbook for sheets to w.
func Write(w io.Writer, sheets []domain.Sheet, weights domain.Weights) error {
	f, err := Workbook(sheets, weights)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// SaveAs writes the workbook for sheets to path.
func SaveAs(path string, sheets []domain.Sheet, weights domain.Weights) error {
	f, err := Workbook(sheets, weights)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func writeAnswers(f *excelize.File, name string, sheet domain.Sheet) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	if err := f.SetSheetRow(name, "A1", &answerHeader); err != nil {
		return err
	}
	for i, entry := range sheet.Answers {
		row := []interface{}{i + 1, choiceCell(entry.UserAnswer), choiceCell(entry.KeyAnswer), outcome(entry)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func outcome(entry domain.AnswerEntry) string {
	switch {
	case entry.KeyAnswer == nil:
		return ""
	case entry.UserAnswer == nil:
		return "no answer"
	case *entry.UserAnswer == *entry.KeyAnswer:
		return "correct"
	default:
		return "incorrect"
	}
}

func choiceCell(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

// worksheetName makes a unique worksheet title within Excel's 31 rune limit
// and without the characters Excel rejects. Titles may not start or end with
// an apostrophe. Titles compare case-insensitively.
func worksheetName(name string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	base = strings.Trim(truncateRunes(strings.Trim(base, "'"), 31), "'")
	if base == "" {
		base = "Sheet"
	}
	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := " (" + strconv.Itoa(n) + ")"
		candidate = truncateRunes(base, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
