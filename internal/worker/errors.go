package worker

import "fmt"

// TranscriptionError means recognition failed and the chunk was dropped
type TranscriptionError struct {
	Seq int
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe chunk %d: %v", e.Seq, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// TranslationError is logged only; the raw text stands in for the translation
type TranslationError struct {
	Seq int
	Err error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate chunk %d: %v", e.Seq, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// StoreWriteError means the recognized chunk could not be persisted and is lost
type StoreWriteError struct {
	Seq int
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("persist chunk %d: %v", e.Seq, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
