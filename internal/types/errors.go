package types

import "fmt"

// ValidationError reports a record that failed schema validation on read.
// The store filters such records from result sets instead of returning them.
type ValidationError struct {
	Record string // record kind, e.g. "agent"
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record: field %s: %s", e.Record, e.Field, e.Reason)
}

// CollaboratorError reports a failure in an external collaborator (wallet,
// factory). Handlers convert it into a failed ActionResult; it never escapes
// the act phase.
type CollaboratorError struct {
	Collaborator string // "wallet" or "factory"
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s: %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
