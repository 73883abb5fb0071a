package pagetree

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine operations. The typed errors below match them
// through errors.Is.
var (
	ErrStructure        = errors.New("pagetree: invalid tree structure")
	ErrPropResolution   = errors.New("pagetree: prop resolution failed")
	ErrDefinitionLookup = errors.New("pagetree: component definition lookup failed")
	ErrUnknownKind      = errors.New("pagetree: unknown component kind")
)

// StructureReason classifies a structural failure.
type StructureReason string

const (
	ReasonDuplicateUUID  StructureReason = "duplicate uuid"
	ReasonMissingUUID    StructureReason = "missing uuid"
	ReasonUnknownParent  StructureReason = "unknown parent"
	ReasonMissingSlot    StructureReason = "slot required for child"
	ReasonOrphanSlot     StructureReason = "slot set on root"
	ReasonUndeclaredSlot StructureReason = "undeclared slot"
	ReasonCycle          StructureReason = "cycle"
)

// StructureError is fatal to a whole pass: the forest described by the
// records cannot be rendered even partially.
type StructureError struct {
	Reason StructureReason
	UUID   string // offending record
	Ref    string // referenced uuid or slot name, when relevant
}

func (e *StructureError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("pagetree: %s: record %q references %q", e.Reason, e.UUID, e.Ref)
	}
	return fmt.Sprintf("pagetree: %s: record %q", e.Reason, e.UUID)
}

// Is matches ErrStructure.
func (e *StructureError) Is(target error) bool {
	return target == ErrStructure
}

// PropResolutionError is local to one node; the rest of the tree still
// hydrates.
type PropResolutionError struct {
	UUID string
	Prop string
	Err  error
}

func (e *PropResolutionError) Error() string {
	return fmt.Sprintf("pagetree: resolve prop %q of %q: %v", e.Prop, e.UUID, e.Err)
}

func (e *PropResolutionError) Unwrap() error {
	return e.Err
}

// Is matches ErrPropResolution.
func (e *PropResolutionError) Is(target error) bool {
	return target == ErrPropResolution
}

// DefinitionLookupError means a node's kind and slot order are unknowable.
type DefinitionLookupError struct {
	UUID        string
	ComponentID string
	Version     string
	Err         error
}

func (e *DefinitionLookupError) Error() string {
	v := e.Version
	if v == "" {
		v = "active"
	}
	return fmt.Sprintf("pagetree: definition %s@%s for %q: %v", e.ComponentID, v, e.UUID, e.Err)
}

func (e *DefinitionLookupError) Unwrap() error {
	return e.Err
}

// Is matches ErrDefinitionLookup.
func (e *DefinitionLookupError) Is(target error) bool {
	return target == ErrDefinitionLookup
}

// IsStructureError checks if err is a structural failure.
func IsStructureError(err error) bool {
	return errors.Is(err, ErrStructure)
}

// IsPropResolutionError checks if err is a prop resolution failure.
func IsPropResolutionError(err error) bool {
	return errors.Is(err, ErrPropResolution)
}

// IsDefinitionLookupError checks if err is a definition lookup failure.
func IsDefinitionLookupError(err error) bool {
	return errors.Is(err, ErrDefinitionLookup)
}

// ErrorUUID returns the uuid carried by any engine error in err's chain.
func ErrorUUID(err error) string {
	var se *StructureError
	if errors.As(err, &se) {
		return se.UUID
	}
	var pe *PropResolutionError
	if errors.As(err, &pe) {
		return pe.UUID
	}
	var de *DefinitionLookupError
	if errors.As(err, &de) {
		return de.UUID
	}
	return ""
}
