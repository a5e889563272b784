package summarizer

import "errors"

var (
	// ErrExtraction reports a malformed or empty source text.
	ErrExtraction = errors.New("extraction failed")
	// ErrDecoding reports an invalid decoding configuration or a failed model call.
	ErrDecoding = errors.New("decoding failed")
	// ErrScoring reports an unavailable classifier or a malformed score set.
	ErrScoring = errors.New("scoring failed")
	// ErrUnknownStrategy reports a strategy name that is not registered.
	ErrUnknownStrategy = errors.New("unknown strategy")
)
