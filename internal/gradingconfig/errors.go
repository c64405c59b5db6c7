package gradingconfig

import "errors"

var (
	// ErrOutOfRangeIndex indicates a removal targeted an index absent from the list.
	ErrOutOfRangeIndex = errors.New("index out of range")
	// ErrInvalidArgument indicates a section or criterion value outside the accepted domain.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIncompleteConfiguration indicates a request was built without papers or rubric content.
	ErrIncompleteConfiguration = errors.New("configuration requires papers or rubric content")
)
