package app

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"answerlab/internal/domain"
	"github.com/google/uuid"
)

// DefaultStorageKey is the slot the collection is persisted under.
const DefaultStorageKey = "answersheets_v1"

// KeyValueStore abstracts the durable slot the collection is mirrored to
// (sqlite, Redis, Postgres, in-memory). Both calls are best-effort.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// StoreOption configures a SheetStore.
type StoreOption func(*SheetStore)

// WithStorageKey overrides DefaultStorageKey.
func WithStorageKey(key string) StoreOption {
	return func(s *SheetStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock is mostly for deterministic timestamps in tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *SheetStore) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *SheetStore) { s.newID = newID }
}

// SheetStore owns the sheet collection and mirrors every change to a KeyValueStore.
type SheetStore struct {
	kv    KeyValueStore
	key   string
	now   func() time.Time
	newID func() string

	mu          sync.RWMutex
	sheets      []domain.Sheet
	subscribers map[chan []domain.Sheet]struct{}
}

// NewSheetStore builds a store and loads the persisted collection. A missing,
// unreadable or corrupt slot yields an empty collection.
func NewSheetStore(ctx context.Context, kv KeyValueStore, opts ...StoreOption) *SheetStore {
	s := &SheetStore{
		kv:          kv,
		key:         DefaultStorageKey,
		now:         time.Now,
		newID:       uuid.NewString,
		subscribers: make(map[chan []domain.Sheet]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sheets = s.load(ctx)
	return s
}

// Create validates the payload and prepends a blank sheet to the collection.
func (s *SheetStore) Create(ctx context.Context, payload domain.SheetPayload) (domain.Sheet, error) {
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		return domain.Sheet{}, domain.ErrEmptyName
	}
	if payload.QuestionCount < 1 || payload.ChoiceCount < 1 {
		return domain.Sheet{}, domain.ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := domain.Sheet{
		ID:            s.newID(),
		Name:          name,
		QuestionCount: payload.QuestionCount,
		ChoiceCount:   payload.ChoiceCount,
		Answers:       domain.BlankAnswers(payload.QuestionCount),
		UpdatedAt:     s.now().UnixMilli(),
	}
	next := make([]domain.Sheet, 0, len(s.sheets)+1)
	next = append(next, sheet)
	next = append(next, s.sheets...)
	s.commitLocked(ctx, next)
	return sheet.Clone(), nil
}

// SetAnswer replaces one field of one entry. Unknown sheets and out-of-range
// indices are ignored.
func (s *SheetStore) SetAnswer(ctx context.Context, sheetID string, questionIndex int, role domain.Role, value *int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sheetID)
	if idx < 0 {
		return
	}
	current := s.sheets[idx]
	if questionIndex < 0 || questionIndex >= len(current.Answers) {
		return
	}

	updated := current.Clone()
	entry := updated.Answers[questionIndex]
	switch role {
	case domain.RoleUser:
		entry.UserAnswer = copyChoice(value)
	case domain.RoleKey:
		entry.KeyAnswer = copyChoice(value)
	default:
		return
	}
	updated.Answers[questionIndex] = entry
	updated.UpdatedAt = s.stampLocked(current)
	s.replaceLocked(ctx, idx, updated)
}

// Rename changes a sheet's display name.
func (s *SheetStore) Rename(ctx context.Context, sheetID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sheetID)
	if idx < 0 {
		return nil
	}
	updated := s.sheets[idx].Clone()
	updated.Name = name
	updated.UpdatedAt = s.stampLocked(s.sheets[idx])
	s.replaceLocked(ctx, idx, updated)
	return nil
}

// Resize rebuilds the answers of a sheet for new question and choice counts.
// Entries at surviving indices are carried over; choices that no longer fit
// become unset.
func (s *SheetStore) Resize(ctx context.Context, sheetID string, questionCount, choiceCount int) error {
	if questionCount < 1 || choiceCount < 1 {
		return domain.ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sheetID)
	if idx < 0 {
		return nil
	}
	current := s.sheets[idx]
	answers := domain.BlankAnswers(questionCount)
	for i := range answers {
		if i >= len(current.Answers) {
			break
		}
		answers[i] = domain.AnswerEntry{
			UserAnswer: fitChoice(current.Answers[i].UserAnswer, choiceCount),
			KeyAnswer:  fitChoice(current.Answers[i].KeyAnswer, choiceCount),
		}
	}

	updated := current
	updated.QuestionCount = questionCount
	updated.ChoiceCount = choiceCount
	updated.Answers = answers
	updated.UpdatedAt = s.stampLocked(current)
	s.replaceLocked(ctx, idx, updated)
	return nil
}

// Remove deletes a sheet. Removing an unknown id is a no-op.
func (s *SheetStore) Remove(ctx context.Context, sheetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sheetID)
	if idx < 0 {
		return
	}
	next := make([]domain.Sheet, 0, len(s.sheets)-1)
	next = append(next, s.sheets[:idx]...)
	next = append(next, s.sheets[idx+1:]...)
	s.commitLocked(ctx, next)
}

// Sheets returns a copy of the collection, newest first.
func (s *SheetStore) Sheets() []domain.Sheet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSheets(s.sheets)
}

// Get returns a copy of one sheet.
func (s *SheetStore) Get(sheetID string) (domain.Sheet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(sheetID)
	if idx < 0 {
		return domain.Sheet{}, false
	}
	return s.sheets[idx].Clone(), true
}

// Resolve picks the active sheet for a possibly stale remembered id: the
// remembered sheet if it still exists, else the first sheet, else none.
func (s *SheetStore) Resolve(rememberedID string) (domain.Sheet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return resolveSheet(s.sheets, rememberedID)
}

// Subscribe returns a channel of collection snapshots. The first value is
// the current collection. The caller must invoke cancel to avoid leaks.
func (s *SheetStore) Subscribe() (<-chan []domain.Sheet, func()) {
	ch := make(chan []domain.Sheet, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- cloneSheets(s.sheets)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *SheetStore) replaceLocked(ctx context.Context, idx int, sheet domain.Sheet) {
	next := make([]domain.Sheet, len(s.sheets))
	copy(next, s.sheets)
	next[idx] = sheet
	s.commitLocked(ctx, next)
}

// commitLocked swaps in the new collection, writes it through and notifies
// subscribers. Write failures are logged and do not roll back memory.
func (s *SheetStore) commitLocked(ctx context.Context, next []domain.Sheet) {
	s.sheets = next
	s.persistLocked(ctx)
	s.broadcastLocked()
}

func (s *SheetStore) persistLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	data, err := EncodeSheets(s.sheets)
	if err != nil {
		log.Printf("unable to encode sheets: %v", err)
		return
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		log.Printf("unable to store sheets: %v", err)
	}
}

func (s *SheetStore) load(ctx context.Context) []domain.Sheet {
	if s.kv == nil {
		return []domain.Sheet{}
	}
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		log.Printf("failed to read saved sheets: %v", err)
		return []domain.Sheet{}
	}
	if !ok || raw == "" {
		return []domain.Sheet{}
	}
	sheets, err := DecodeSheets([]byte(raw))
	if err != nil {
		log.Printf("failed to parse saved sheets: %v", err)
		return []domain.Sheet{}
	}
	return sheets
}

func (s *SheetStore) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snapshot := cloneSheets(s.sheets)
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Slow subscriber: drop the stale snapshot so it only sees the latest.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

// stampLocked keeps UpdatedAt non-decreasing even if the clock steps back.
func (s *SheetStore) stampLocked(prev domain.Sheet) int64 {
	now := s.now().UnixMilli()
	if now < prev.UpdatedAt {
		return prev.UpdatedAt
	}
	return now
}

func (s *SheetStore) indexLocked(sheetID string) int {
	for i := range s.sheets {
		if s.sheets[i].ID == sheetID {
			return i
		}
	}
	return -1
}

// EncodeSheets serializes a collection in the persisted layout.
func EncodeSheets(sheets []domain.Sheet) ([]byte, error) {
	if sheets == nil {
		sheets = []domain.Sheet{}
	}
	return json.Marshal(sheets)
}

// DecodeSheets parses the persisted layout and normalizes what it can:
// records without an id or with non-positive counts and duplicate ids are
// dropped, answers are padded or truncated to the question count.
func DecodeSheets(data []byte) ([]domain.Sheet, error) {
	var raw []domain.Sheet
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(raw))
	sheets := make([]domain.Sheet, 0, len(raw))
	for _, sheet := range raw {
		if sheet.ID == "" || sheet.QuestionCount < 1 || sheet.ChoiceCount < 1 {
			continue
		}
		if _, dup := seen[sheet.ID]; dup {
			continue
		}
		seen[sheet.ID] = struct{}{}
		if len(sheet.Answers) != sheet.QuestionCount {
			answers := domain.BlankAnswers(sheet.QuestionCount)
			copy(answers, sheet.Answers)
			sheet.Answers = answers
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

func resolveSheet(sheets []domain.Sheet, rememberedID string) (domain.Sheet, bool) {
	if len(sheets) == 0 {
		return domain.Sheet{}, false
	}
	if rememberedID != "" {
		for i := range sheets {
			if sheets[i].ID == rememberedID {
				return sheets[i].Clone(), true
			}
		}
	}
	return sheets[0].Clone(), true
}

func cloneSheets(sheets []domain.Sheet) []domain.Sheet {
	out := make([]domain.Sheet, len(sheets))
	for i := range sheets {
		out[i] = sheets[i].Clone()
	}
	return out
}

func copyChoice(v *int) *int {
	if v == nil {
		return nil
	}
	return domain.Choice(*v)
}

func fitChoice(v *int, choiceCount int) *int {
	if v == nil || *v < 1 || *v > choiceCount {
		return nil
	}
	return domain.Choice(*v)
}
