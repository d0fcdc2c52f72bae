package achievement

import "errors"

// Sentinel kinds for evaluation errors.
var (
	ErrEvaluate    = errors.New("achievement evaluation failed")
	ErrInvalidUser = errors.New("invalid user id")
)
