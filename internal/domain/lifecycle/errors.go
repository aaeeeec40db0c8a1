package lifecycle

import "errors"

// Causes attached to InvalidState and InvalidArgument errors.
var (
	ErrRoundFrozen       = errors.New("round is frozen")
	ErrRoundEvaluated    = errors.New("round is already evaluated")
	ErrRoundNotFrozen    = errors.New("round is not frozen")
	ErrNoEvaluations     = errors.New("round has no evaluations")
	ErrTeamNotActive     = errors.New("team is not active")
	ErrInvalidCriteria   = errors.New("invalid evaluation criteria")
	ErrDuplicateCriteria = errors.New("duplicate criterion name")
)
