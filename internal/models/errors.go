package models

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyIndex    = errors.New("index is empty")
	ErrInvalidQuery  = errors.New("question is empty")
	ErrNoDocument    = errors.New("no document loaded")
	ErrEmptyDocument = errors.New("document has no extractable text")
	ErrEmptyHistory  = errors.New("chat history is empty")
	ErrNoFile        = errors.New("no file uploaded")
)

// ExtractionError means the file could not be opened or parsed as a PDF.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DimensionMismatchError is returned when a vector does not match the index dimension.
type DimensionMismatchError struct {
	Want     int
	Got      int
	Position int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch at %d: want %d, got %d", e.Position, e.Want, e.Got)
}

// GenerationError wraps a failed call to the language model.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// UnsupportedFileError is returned by upload intake for anything that is not an acceptable PDF.
type UnsupportedFileError struct {
	Path   string
	Reason string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("unsupported file %s: %s", e.Path, e.Reason)
}
