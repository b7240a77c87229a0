package schedule

import "errors"

var (
	// ErrConfiguration marks invalid inputs detected before any solve.
	ErrConfiguration = errors.New("invalid schedule configuration")
	// ErrInfeasible is returned when no trajectory satisfies the constraints.
	ErrInfeasible = errors.New("schedule is infeasible")
	// ErrAlreadyRun is returned by Run on a problem that has left StatusUnsolved.
	ErrAlreadyRun = errors.New("schedule problem already run")
	// ErrConstraintViolated is returned by Verify.
	ErrConstraintViolated = errors.New("schedule violates a constraint")
)

// SolverError carries a solver failure verbatim.
type SolverError struct {
	Err error
}

func (e *SolverError) Error() string { return "schedule solver failed: " + e.Err.Error() }
func (e *SolverError) Unwrap() error { return e.Err }
