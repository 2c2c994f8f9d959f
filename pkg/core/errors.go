package core

import (
	"errors"
	"fmt"
)

// BuildError represents a structured error raised while building, rendering
// or exporting a flow.
type BuildError struct {
	Category ErrorCategory
	Code     string // Machine-readable code: duplicate_name, action_not_found, etc.
	Message  string // Human-readable message
	Subject  string // Name of the offending action, trigger or package
	Cause    error  // Underlying error
}

// Error implements the error interface
func (e *BuildError) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s: %s", e.Subject, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BuildError with the same code, so copies
// made with the With* helpers still match their predefined error.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithSubject returns a copy of the error naming the offending entity
func (e *BuildError) WithSubject(subject string) *BuildError {
	c := *e
	c.Subject = subject
	return &c
}

// WithCause returns a copy of the error with the given cause
func (e *BuildError) WithCause(cause error) *BuildError {
	c := *e
	c.Cause = cause
	return &c
}

// WithMessage returns a copy of the error with a custom message
func (e *BuildError) WithMessage(msg string) *BuildError {
	c := *e
	c.Message = msg
	return &c
}

// WithMessagef is WithMessage with fmt.Sprintf formatting
func (e *BuildError) WithMessagef(format string, args ...any) *BuildError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Predefined errors
var (
	// Validation errors
	ErrMissingParameter = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "missing_parameter",
		Message:  "missing required parameter",
	}
	ErrInvalidParameter = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "invalid_parameter",
		Message:  "invalid parameter value",
	}
	ErrEmptyName = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "empty_name",
		Message:  "name must not be empty",
	}
	ErrDuplicateName = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "duplicate_name",
		Message:  "action name already used in flow",
	}
	ErrAlreadyAttached = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "already_attached",
		Message:  "action already belongs to a scope",
	}
	ErrCyclicAttach = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "cyclic_attach",
		Message:  "action cannot be placed inside itself",
	}
	ErrRootOnly = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "root_only",
		Message:  "action can only be placed in the root scope",
	}
	ErrInvalidRunAfter = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "invalid_run_after",
		Message:  "runAfter must reference an earlier action in the same scope",
	}
	ErrMissingTrigger = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "missing_trigger",
		Message:  "flow has no trigger",
	}
	ErrInvalidDefinition = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "invalid_definition",
		Message:  "invalid actions definition",
	}
	ErrInvalidExpression = &BuildError{
		Category: ErrCategoryValidation,
		Code:     "invalid_expression",
		Message:  "malformed condition expression",
	}

	// Lookup errors
	ErrActionNotFound = &BuildError{
		Category: ErrCategoryLookup,
		Code:     "action_not_found",
		Message:  "action not found",
	}
	ErrNotContainer = &BuildError{
		Category: ErrCategoryLookup,
		Code:     "not_container",
		Message:  "action cannot contain other actions",
	}
	ErrUnknownBranch = &BuildError{
		Category: ErrCategoryLookup,
		Code:     "unknown_branch",
		Message:  "unknown branch",
	}
	ErrUnknownConnector = &BuildError{
		Category: ErrCategoryLookup,
		Code:     "unknown_connector",
		Message:  "unknown connector",
	}
	ErrUnknownOperation = &BuildError{
		Category: ErrCategoryLookup,
		Code:     "unknown_operation",
		Message:  "unknown connector operation",
	}

	// IO errors
	ErrWriteArchive = &BuildError{
		Category: ErrCategoryIO,
		Code:     "write_archive",
		Message:  "failed to write archive",
	}
	ErrReadInput = &BuildError{
		Category: ErrCategoryIO,
		Code:     "read_input",
		Message:  "failed to read input",
	}
)

// NewBuildError creates a new BuildError with the given parameters
func NewBuildError(category ErrorCategory, code, message string) *BuildError {
	return &BuildError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CategoryOf returns the category of the first BuildError in err's chain
func CategoryOf(err error) ErrorCategory {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Category
	}
	return ErrCategoryNone
}
