package pricing

import "fmt"

// ValidationError reports a record that failed ingestion checks. The batch
// continues; only the offending row is rejected.
type ValidationError struct {
	PropertyID string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.PropertyID == "" {
		return fmt.Sprintf("pricing: invalid field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("pricing: property %s: invalid field %q: %s", e.PropertyID, e.Field, e.Reason)
}

// NotFittedError is returned when an operation needs fitted state that does not exist yet.
type NotFittedError struct {
	Component string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("pricing: %s used before fit", e.Component)
}

// DegenerateFeatureError is a fit-time failure for a feature with zero variance.
type DegenerateFeatureError struct {
	Feature string
}

func (e *DegenerateFeatureError) Error() string {
	return fmt.Sprintf("pricing: feature %q has zero variance", e.Feature)
}

// EmptyGroupError is a fit-time failure for a group that ended with no members.
type EmptyGroupError struct {
	Group int
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("pricing: group %d has no members", e.Group)
}

// InternalInvariantError signals a defect: a group id with no profile.
type InternalInvariantError struct {
	Group int
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("pricing: no profile for group %d", e.Group)
}
