package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// InputNotFound indicates the source document does not exist or cannot be read
	InputNotFound ErrorCode = "INPUT_NOT_FOUND"
	// NoCitations indicates the scan found no citation markers
	NoCitations ErrorCode = "NO_CITATIONS"
	// BibliographyDelimiter indicates the begin or end marker of the bibliography is missing
	BibliographyDelimiter ErrorCode = "BIBLIOGRAPHY_DELIMITER"
	// OutputWrite indicates the destination could not be written
	OutputWrite ErrorCode = "OUTPUT_WRITE"
	// ConfigInvalid indicates a bad config file or value
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// HistoryUnavailable indicates the run history store could not be used
	HistoryUnavailable ErrorCode = "HISTORY_UNAVAILABLE"
	// BackupFailed indicates the pre-write snapshot could not be created
	BackupFailed ErrorCode = "BACKUP_FAILED"
	// RunNotFound indicates no recorded run matches the requested ID
	RunNotFound ErrorCode = "RUN_NOT_FOUND"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditDocument suggests a change to the input document
	EditDocument FixActionType = "edit-document"
	// CheckPath suggests checking a filesystem path
	CheckPath FixActionType = "check-path"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type" yaml:"type"`
	Command     string        `json:"command,omitempty" yaml:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty" yaml:"safe,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// BibsortError represents an error with code, message, and suggestions
type BibsortError struct {
	Code           ErrorCode   `json:"code" yaml:"code"`
	Message        string      `json:"message" yaml:"message"`
	Details        interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty" yaml:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewBibsortError creates a new BibsortError. When fixes is nil the
// predefined fixes for code are attached.
func NewBibsortError(code ErrorCode, message string, cause error, fixes []FixAction) *BibsortError {
	if fixes == nil {
		fixes = GetSuggestedFixes(code)
	}
	return &BibsortError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: fixes,
	}
}

// Error implements the error interface
func (e *BibsortError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *BibsortError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *BibsortError) WithDetails(details interface{}) *BibsortError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first BibsortError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var be *BibsortError
	if stderrors.As(err, &be) {
		return be.Code
	}
	return InternalError
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	InputNotFound: {
		{
			Type:        CheckPath,
			Description: "Check that the input path exists and is readable",
		},
	},
	NoCitations: {
		{
			Type:        RunCommand,
			Command:     "bibsort scan ${input}",
			Safe:        true,
			Description: "Inspect which citation markers the scanner recognises",
		},
		{
			Type:        EditDocument,
			Description: "Add the document's citation commands to citation.commands in .bibsort/config.toml",
		},
	},
	BibliographyDelimiter: {
		{
			Type:        EditDocument,
			Description: "Wrap the reference list in \\begin{thebibliography}{99} ... \\end{thebibliography}",
		},
	},
	OutputWrite: {
		{
			Type:        CheckPath,
			Description: "Check that the output directory exists and is writable",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "bibsort config show",
			Safe:        true,
			Description: "Print the effective configuration",
		},
	},
	BackupFailed: {
		{
			Type:        RunCommand,
			Command:     "bibsort --in-place --no-backup ${input}",
			Safe:        false,
			Description: "Rewrite without a snapshot",
		},
	},
	RunNotFound: {
		{
			Type:        RunCommand,
			Command:     "bibsort history",
			Safe:        true,
			Description: "List recent runs and their IDs",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
