package domain

import "errors"

var (
	// ErrEmptyName is returned when a sheet name is blank after trimming.
	ErrEmptyName = errors.New("please give the sheet a name")
	// ErrNotNumeric is returned when question or choice counts are not finite numbers.
	ErrNotNumeric = errors.New("numbers only for questions and choices")
	// ErrInvalidCount indicates a question or choice count below one.
	ErrInvalidCount = errors.New("question and choice counts must be at least 1")
	// ErrIncompleteKey is returned when a sheet is evaluated before every key answer is set.
	ErrIncompleteKey = errors.New("complete the answer key before checking the sheet")
	// ErrNoSheet indicates an operation that needs a sheet ran against an empty collection.
	ErrNoSheet = errors.New("create a sheet first")
	// ErrSheetNotFound indicates the referenced sheet id is not in the collection.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrInvalidChoice indicates a selected choice is outside 1..choiceCount.
	ErrInvalidChoice = errors.New("choice out of range")
)
