package threat

import "fmt"

// ValidationError reports a request rejected by input validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ConflictError reports an attempt to register a value the registry
// already holds. ExistingID names the record that won.
type ConflictError struct {
	Value      string
	ExistingID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("IOC with value '%s' already exists (ID: %d)", e.Value, e.ExistingID)
}

// NotFoundError reports a lookup or delete for an id with no record.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Threat with ID %d not found", e.ID)
}
