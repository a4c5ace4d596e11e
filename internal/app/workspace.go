package app

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"answerlab/internal/domain"
)

// Mode is which track the workspace is editing, or review after a check.
type Mode string

const (
	ModeAnswer Mode = "answer"
	ModeKey    Mode = "key"
	ModeReview Mode = "review"
)

// User-facing messages for the non-fatal error taxonomy.
const (
	MsgEmptyName     = "Please give the sheet a name."
	MsgNumbersOnly   = "Numbers only for questions and choices."
	MsgNoSheet       = "Create a sheet first."
	MsgIncompleteKey = "Complete the answer key before checking the sheet."
	MsgInvalidChoice = "Pick one of the listed choices."
)

// NoChoice is the raw selection value that clears an answer.
const NoChoice = "none"

// Message maps a domain error to the text shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrEmptyName):
		return MsgEmptyName
	case errors.Is(err, domain.ErrNotNumeric), errors.Is(err, domain.ErrInvalidCount):
		return MsgNumbersOnly
	case errors.Is(err, domain.ErrNoSheet):
		return MsgNoSheet
	case errors.Is(err, domain.ErrIncompleteKey):
		return MsgIncompleteKey
	case errors.Is(err, domain.ErrInvalidChoice):
		return MsgInvalidChoice
	default:
		return err.Error()
	}
}

// SheetForm is raw sheet creation input as typed by the user.
type SheetForm struct {
	Name      string `json:"name"`
	Questions string `json:"questions"`
	Choices   string `json:"choices"`
}

// ParseSheetForm validates raw input. Counts must be finite numbers; they are
// raised to at least 1 and truncated to whole numbers.
func ParseSheetForm(form SheetForm) (domain.SheetPayload, error) {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return domain.SheetPayload{}, domain.ErrEmptyName
	}
	questions, err := parseCount(form.Questions)
	if err != nil {
		return domain.SheetPayload{}, err
	}
	choices, err := parseCount(form.Choices)
	if err != nil {
		return domain.SheetPayload{}, err
	}
	return domain.SheetPayload{Name: name, QuestionCount: questions, ChoiceCount: choices}, nil
}

func parseCount(raw string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.ErrNotNumeric
	}
	if v < 1 {
		return 1, nil
	}
	if v > math.MaxInt32 {
		return 0, domain.ErrNotNumeric
	}
	return int(v), nil
}

// ParseChoice turns a raw selection into a choice for a sheet. "none" and
// the empty string clear the answer.
func ParseChoice(raw string, choiceCount int) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == NoChoice {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > choiceCount {
		return nil, domain.ErrInvalidChoice
	}
	return domain.Choice(n), nil
}

// View is the render state of a workspace.
type View struct {
	Sheets        []domain.Sheet        `json:"sheets"`
	Selected      *domain.Sheet         `json:"selected,omitempty"`
	Mode          Mode                  `json:"mode"`
	Result        *domain.ResultSummary `json:"result,omitempty"`
	ScoreCard     *ScoreCard            `json:"scoreCard,omitempty"`
	Weights       map[Category]string   `json:"weights"`
	Error         string                `json:"error,omitempty"`
	CanCheck      bool                  `json:"canCheck"`
	PendingDelete *domain.Sheet         `json:"pendingDelete,omitempty"`
}

// Workspace holds the ephemeral presentation state of one client on top of a
// shared SheetStore. It is not safe for concurrent use.
type Workspace struct {
	store *SheetStore

	selectedID    string
	mode          Mode
	result        *domain.ResultSummary
	checked       domain.Sheet
	errMsg        string
	pendingDelete string
	weights       map[Category]string
}

// NewWorkspace starts in answer mode with the given raw default weights.
func NewWorkspace(store *SheetStore, weights map[Category]string) *Workspace {
	raw := make(map[Category]string, len(Categories))
	for _, c := range Categories {
		raw[c] = weights[c]
	}
	return &Workspace{store: store, mode: ModeAnswer, weights: raw}
}

// CreateSheet validates the form, creates the sheet and selects it.
func (w *Workspace) CreateSheet(ctx context.Context, form SheetForm) (domain.Sheet, error) {
	payload, err := ParseSheetForm(form)
	if err != nil {
		w.errMsg = Message(err)
		return domain.Sheet{}, err
	}
	sheet, err := w.store.Create(ctx, payload)
	if err != nil {
		w.errMsg = Message(err)
		return domain.Sheet{}, err
	}
	w.selectedID = sheet.ID
	w.clearResult()
	return sheet, nil
}

// Select remembers a sheet id. Unknown ids are ignored.
func (w *Workspace) Select(sheetID string) {
	if _, ok := w.store.Get(sheetID); !ok {
		return
	}
	w.selectedID = sheetID
	w.clearResult()
}

// SetMode switches between answer and key editing.
func (w *Workspace) SetMode(mode Mode) {
	switch mode {
	case ModeAnswer, ModeKey, ModeReview:
		w.mode = mode
	}
}

// ChooseAnswer applies a raw selection to the current sheet. Answer mode
// edits the attempt, key mode edits the key; editing from review returns to
// answer mode.
func (w *Workspace) ChooseAnswer(ctx context.Context, questionIndex int, raw string) error {
	sheet, ok := w.store.Resolve(w.selectedID)
	if !ok {
		return nil
	}
	value, err := ParseChoice(raw, sheet.ChoiceCount)
	if err != nil {
		w.errMsg = Message(err)
		return err
	}
	if w.mode == ModeReview {
		w.mode = ModeAnswer
	}
	role := domain.RoleUser
	if w.mode == ModeKey {
		role = domain.RoleKey
	}
	w.store.SetAnswer(ctx, sheet.ID, questionIndex, role, value)
	w.clearResult()
	return nil
}

// Check evaluates the current sheet. An incomplete key is reported and
// clears any previous result.
func (w *Workspace) Check() (domain.ResultSummary, error) {
	sheet, ok := w.store.Resolve(w.selectedID)
	if !ok {
		w.errMsg = MsgNoSheet
		return domain.ResultSummary{}, domain.ErrNoSheet
	}
	summary, err := Evaluate(sheet)
	if err != nil {
		w.errMsg = Message(err)
		w.result = nil
		return domain.ResultSummary{}, err
	}
	w.errMsg = ""
	w.result = &summary
	w.checked = sheet
	w.mode = ModeReview
	return summary, nil
}

// ExitReview drops the result and returns to answer mode.
func (w *Workspace) ExitReview() {
	w.clearResult()
	w.mode = ModeAnswer
}

// RequestDelete marks a sheet for deletion pending confirmation.
func (w *Workspace) RequestDelete(sheetID string) {
	if _, ok := w.store.Get(sheetID); ok {
		w.pendingDelete = sheetID
	}
}

// CancelDelete forgets a pending deletion.
func (w *Workspace) CancelDelete() {
	w.pendingDelete = ""
}

// ConfirmDelete removes the pending sheet and clears the selection if it
// pointed at that sheet.
func (w *Workspace) ConfirmDelete(ctx context.Context) {
	if w.pendingDelete == "" {
		return
	}
	w.store.Remove(ctx, w.pendingDelete)
	if w.pendingDelete == w.selectedID {
		w.selectedID = ""
	}
	w.pendingDelete = ""
	w.clearResult()
}

// SetWeight stores raw multiplier input for a category.
func (w *Workspace) SetWeight(category Category, raw string) {
	if _, ok := w.weights[category]; !ok {
		return
	}
	w.weights[category] = raw
}

// Weights resolves the raw multiplier input.
func (w *Workspace) Weights() domain.Weights {
	return ParseWeights(w.weights[CategoryCorrect], w.weights[CategoryIncorrect], w.weights[CategoryNoAnswer])
}

// SelectedID is the remembered selection, which may be stale.
func (w *Workspace) SelectedID() string {
	return w.selectedID
}

// Mode returns the current editing mode.
func (w *Workspace) Mode() Mode {
	return w.mode
}

// View renders the current state.
func (w *Workspace) View() View {
	sheets := w.store.Sheets()
	view := View{
		Sheets:  sheets,
		Mode:    w.mode,
		Error:   w.errMsg,
		Weights: make(map[Category]string, len(w.weights)),
	}
	for c, raw := range w.weights {
		view.Weights[c] = raw
	}
	if sheet, ok := resolveSheet(sheets, w.selectedID); ok {
		view.Selected = &sheet
		view.CanCheck = Checkable(sheet)
	}
	if w.result != nil && !w.resultCurrent(view.Selected) {
		w.result = nil
		if w.mode == ModeReview {
			w.mode = ModeAnswer
		}
		view.Mode = w.mode
	}
	if w.result != nil {
		summary := *w.result
		card := NewScoreCard(summary, w.Weights())
		view.Result = &summary
		view.ScoreCard = &card
	}
	if w.pendingDelete != "" {
		for i := range sheets {
			if sheets[i].ID == w.pendingDelete {
				pending := sheets[i]
				view.PendingDelete = &pending
				break
			}
		}
	}
	return view
}

// resultCurrent reports whether the last check still describes the shown
// sheet. Edits from other clients make it stale.
func (w *Workspace) resultCurrent(shown *domain.Sheet) bool {
	if shown == nil || shown.ID != w.checked.ID || shown.UpdatedAt != w.checked.UpdatedAt {
		return false
	}
	summary, err := Evaluate(*shown)
	return err == nil && summary == *w.result
}

func (w *Workspace) clearResult() {
	w.result = nil
	w.errMsg = ""
}
