package classify

import "errors"

// ErrInvalidRule indicates a rule table entry cannot be evaluated.
var ErrInvalidRule = errors.New("invalid classification rule")
