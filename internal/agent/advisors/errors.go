package advisors

import "errors"

// Outcomes a lookup recovers from. GetPersona reports them to the user and
// returns a nil persona; they are only logged.
var (
	ErrNoPersona         = errors.New("no persona file identified")
	ErrPersonaLoad       = errors.New("persona file could not be loaded")
	ErrCreationCancelled = errors.New("persona creation cancelled")
	ErrUnsafePath        = errors.New("unsafe persona path")
)

// ErrNotRecorded marks advice that was generated but could not be appended
// to the conversation. The advice text is still returned.
var ErrNotRecorded = errors.New("advice not recorded")

// ClassificationParseError is returned when the classifier reply holds no
// usable JSON object
type ClassificationParseError struct {
	Reply string
	Err   error
}

func (e *ClassificationParseError) Error() string {
	return "failed to parse persona classification: " + e.Err.Error()
}

func (e *ClassificationParseError) Unwrap() error {
	return e.Err
}

// PersonaWriteError is returned when a new persona file cannot be written
type PersonaWriteError struct {
	Path string
	Err  error
}

func (e *PersonaWriteError) Error() string {
	return "failed to write persona file " + e.Path + ": " + e.Err.Error()
}

func (e *PersonaWriteError) Unwrap() error {
	return e.Err
}
