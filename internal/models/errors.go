package models

import (
	"errors"
	"fmt"
)

// Page-scoped failures. Adapters wrap these with %w so the pipeline can
// classify a failure without knowing which backend produced it.
var (
	ErrPageNotFound        = errors.New("page not found")
	ErrRenderFailure       = errors.New("render failure")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrRecognitionFailure  = errors.New("recognition failure")
	ErrCancelled           = errors.New("cancelled")
)

// Document-scoped failures abort the whole extraction.
var (
	ErrOpenDocument    = errors.New("cannot open document")
	ErrEmptyDocument   = errors.New("document has no pages")
	ErrDocumentInvalid = errors.New("document handle invalidated")
)

// ErrorKind names the class of a page-level failure.
type ErrorKind string

const (
	KindPageNotFound        ErrorKind = "PageNotFound"
	KindRenderFailure       ErrorKind = "RenderFailure"
	KindUnsupportedLanguage ErrorKind = "UnsupportedLanguage"
	KindRecognitionFailure  ErrorKind = "RecognitionFailure"
	KindCancelled           ErrorKind = "Cancelled"
)

// Stage identifies the pipeline step that produced a PageError.
type Stage string

const (
	StageNative    Stage = "native"
	StageRender    Stage = "render"
	StageRecognize Stage = "recognize"
	StageDispatch  Stage = "dispatch"
)

// PageError describes why a single page produced no text.
type PageError struct {
	Kind    ErrorKind `json:"kind" firestore:"kind"`
	Stage   Stage     `json:"stage" firestore:"stage"`
	Message string    `json:"message" firestore:"message"`
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s during %s: %s", e.Kind, e.Stage, e.Message)
}

// Is lets errors.Is match a PageError against the sentinel of its kind.
func (e *PageError) Is(target error) bool {
	s := sentinelFor(e.Kind)
	return s != nil && target == s
}

// KindOf returns the ErrorKind whose sentinel err wraps, or "" if none does.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPageNotFound):
		return KindPageNotFound
	case errors.Is(err, ErrUnsupportedLanguage):
		return KindUnsupportedLanguage
	case errors.Is(err, ErrRenderFailure):
		return KindRenderFailure
	case errors.Is(err, ErrRecognitionFailure):
		return KindRecognitionFailure
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	}
	return ""
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindPageNotFound:
		return ErrPageNotFound
	case KindRenderFailure:
		return ErrRenderFailure
	case KindUnsupportedLanguage:
		return ErrUnsupportedLanguage
	case KindRecognitionFailure:
		return ErrRecognitionFailure
	case KindCancelled:
		return ErrCancelled
	}
	return nil
}
