package spec

import (
	"fmt"
	"strings"
)

// BuildErrorKind distinguishes the synchronous, specification-time error
// categories spec.md §7 names.
type BuildErrorKind int

const (
	DisconnectedSpecification BuildErrorKind = iota
	TypeMismatchInRole
	ForwardGivenReference
	PurgeComplianceFailure
)

func (k BuildErrorKind) String() string {
	switch k {
	case DisconnectedSpecification:
		return "DisconnectedSpecification"
	case TypeMismatchInRole:
		return "TypeMismatchInRole"
	case ForwardGivenReference:
		return "ForwardGivenReference"
	case PurgeComplianceFailure:
		return "PurgeComplianceFailure"
	default:
		return "UnknownBuildError"
	}
}

// BuildError is a synchronous error surfaced at parse/build time, never at
// query time. Details carries per-offense diagnostics (e.g. one line per
// disconnected subgraph, or per missing purge condition).
type BuildError struct {
	Kind    BuildErrorKind
	Message string
	Details []string
}

func (e *BuildError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, strings.Join(e.Details, "; "))
}

// NewBuildError constructs a BuildError with optional detail lines.
func NewBuildError(kind BuildErrorKind, message string, details ...string) *BuildError {
	return &BuildError{Kind: kind, Message: message, Details: details}
}
