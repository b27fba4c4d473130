package sentence

import "errors"

// Common errors returned when rendering sentences
var (
	ErrIncompleteSentence = errors.New("incomplete sentence")
	ErrUnknownSentence    = errors.New("unknown sentence type")
)
