package observable

import (
	"errors"
	"fmt"
)

// PropertyError represents an invalid operation on an observable property.
//
// Property errors fall into two kinds:
//   - Configuration errors: the caller named a class or property that is not
//     registered as observable, or supplied an instance/observer the runtime
//     cannot key. These indicate misuse at the call site.
//   - Reentrancy errors: an observer running under dispatch attempted to
//     write the very (instance, property) pair it is reacting to.
//
// PropertyError includes structured fields for diagnostics.
type PropertyError struct {
	// Code identifies the error category.
	Code PropertyErrorCode

	// Message is a human-readable description.
	Message string

	// Class is the type name of the affected instance, if known.
	Class string

	// Property is the affected property name, if any.
	Property string
}

// PropertyErrorCode categorizes property errors.
type PropertyErrorCode string

const (
	// ErrCodeNotRegistered indicates the instance's class has no registered
	// observable properties.
	ErrCodeNotRegistered PropertyErrorCode = "NOT_REGISTERED"

	// ErrCodeNotObservable indicates the named property is not declared
	// observable on the instance's class.
	ErrCodeNotObservable PropertyErrorCode = "NOT_OBSERVABLE"

	// ErrCodeNotPointer indicates the instance is not a pointer and therefore
	// has no stable identity.
	ErrCodeNotPointer PropertyErrorCode = "NOT_POINTER"

	// ErrCodeNoSetter indicates a write to a property declared without a
	// setter. Such properties notify via Update or Notify instead.
	ErrCodeNoSetter PropertyErrorCode = "NO_SETTER"

	// ErrCodeBadObserver indicates an observer the runtime cannot derive a
	// stable identity for (nil, or a non-comparable value type).
	ErrCodeBadObserver PropertyErrorCode = "BAD_OBSERVER"

	// ErrCodeBadPhase indicates a phase outside the before/after domain.
	ErrCodeBadPhase PropertyErrorCode = "BAD_PHASE"

	// ErrCodeReentrantWrite indicates an observer attempted to write the
	// (instance, property) pair it is currently being notified about.
	ErrCodeReentrantWrite PropertyErrorCode = "REENTRANT_WRITE"
)

// Error implements the error interface.
func (e *PropertyError) Error() string {
	if e.Class != "" && e.Property != "" {
		return fmt.Sprintf("%s: %s (class=%s, property=%s)", e.Code, e.Message, e.Class, e.Property)
	}
	if e.Class != "" {
		return fmt.Sprintf("%s: %s (class=%s)", e.Code, e.Message, e.Class)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigurationError returns true if the error reports misconfiguration:
// an unregistered class, a non-observable property, a non-pointer instance,
// a setter-less write, an unkeyable observer, or an unknown phase.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var pe *PropertyError
	if errors.As(err, &pe) {
		switch pe.Code {
		case ErrCodeNotRegistered, ErrCodeNotObservable, ErrCodeNotPointer,
			ErrCodeNoSetter, ErrCodeBadObserver, ErrCodeBadPhase:
			return true
		}
	}
	return false
}

// IsReentrantError returns true if the error is a reentrant write error.
// Uses errors.As to handle wrapped errors.
func IsReentrantError(err error) bool {
	var pe *PropertyError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeReentrantWrite
	}
	return false
}

// NewNotRegisteredError creates a PropertyError for an unregistered class.
func NewNotRegisteredError(class string) *PropertyError {
	return &PropertyError{
		Code:    ErrCodeNotRegistered,
		Message: "class has no registered observable properties",
		Class:   class,
	}
}

// NewNotObservableError creates a PropertyError for a property that exists
// on no descriptor of the class.
func NewNotObservableError(class, property string) *PropertyError {
	return &PropertyError{
		Code:     ErrCodeNotObservable,
		Message:  "property is not observable",
		Class:    class,
		Property: property,
	}
}

// NewNotPointerError creates a PropertyError for a non-pointer instance.
func NewNotPointerError(class string) *PropertyError {
	return &PropertyError{
		Code:    ErrCodeNotPointer,
		Message: "instance must be a pointer",
		Class:   class,
	}
}

// NewNoSetterError creates a PropertyError for a write to a setter-less
// property.
func NewNoSetterError(class, property string) *PropertyError {
	return &PropertyError{
		Code:     ErrCodeNoSetter,
		Message:  "property has no setter; notify via Update or Notify",
		Class:    class,
		Property: property,
	}
}

// NewBadObserverError creates a PropertyError for an observer without a
// derivable identity.
func NewBadObserverError(message string) *PropertyError {
	return &PropertyError{
		Code:    ErrCodeBadObserver,
		Message: message,
	}
}

// NewBadPhaseError creates a PropertyError for a phase outside the
// before/after domain.
func NewBadPhaseError(phase Phase) *PropertyError {
	return &PropertyError{
		Code:    ErrCodeBadPhase,
		Message: fmt.Sprintf("unknown phase %q; valid phases are %q and %q", phase, PhaseBefore, PhaseAfter),
	}
}

// NewReentrantWriteError creates a PropertyError for a write attempted while
// the same (instance, property) pair is under active dispatch.
func NewReentrantWriteError(class, property string) *PropertyError {
	return &PropertyError{
		Code:     ErrCodeReentrantWrite,
		Message:  "observers may not write the property they are being notified about",
		Class:    class,
		Property: property,
	}
}
