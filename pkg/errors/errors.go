// Package errors provides the error taxonomy for nightsync.
// Errors are typed so callers can tell fatal run failures (local data
// unavailable, remote fetch failure, bad configuration) apart from
// per-operation write failures that only make a run partial.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is, As and Join re-export the standard library helpers so callers only
// need to import this package.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Sentinel errors.
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrLocalDataUnavailable indicates the local violation dataset could not be loaded
	ErrLocalDataUnavailable = errors.New("local data unavailable")

	// ErrRemoteFetch indicates the remote dataset could not be read completely
	ErrRemoteFetch = errors.New("remote fetch failed")

	// ErrRemoteWrite indicates a remote mutation failed after retries
	ErrRemoteWrite = errors.New("remote write failed")

	// ErrRemoteUnavailable indicates the remote service returned a server error
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrRateLimited indicates that the remote rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrConfiguration indicates missing or invalid configuration
	ErrConfiguration = errors.New("configuration error")

	// ErrPartialFailure indicates a run finished with some failed operations
	ErrPartialFailure = errors.New("partial failure")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// LocalDataUnavailableError means the authoritative dataset is missing,
// unreadable, unparseable or empty. It always aborts the run before any
// remote mutation.
type LocalDataUnavailableError struct {
	Source  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *LocalDataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("local data unavailable from %s: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("local data unavailable from %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *LocalDataUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *LocalDataUnavailableError) Is(target error) bool {
	return target == ErrLocalDataUnavailable
}

// NewLocalDataUnavailableError creates a new LocalDataUnavailableError
func NewLocalDataUnavailableError(source, message string, err error) *LocalDataUnavailableError {
	return &LocalDataUnavailableError{Source: source, Message: message, Err: err}
}

// RemoteRequestError is a non-transient rejection (4xx other than 429) or a
// transient failure that exhausted its retry budget.
type RemoteRequestError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface
func (e *RemoteRequestError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Endpoint, e.StatusCode)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
	}
}

// Unwrap implements errors.Unwrap
func (e *RemoteRequestError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RemoteRequestError) Is(target error) bool {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return target == ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return target == ErrRateLimited
	case e.StatusCode >= 500:
		return target == ErrRemoteUnavailable
	}
	return false
}

// Transient reports whether the failure is worth retrying.
func (e *RemoteRequestError) Transient() bool {
	if e.StatusCode == 0 {
		return e.Err != nil
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewRemoteRequestError creates a new RemoteRequestError
func NewRemoteRequestError(method, endpoint string, statusCode int, body string) *RemoteRequestError {
	return &RemoteRequestError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Body:       body,
	}
}

// RemoteFetchError means the remote dataset could not be read in full.
type RemoteFetchError struct {
	Goal string
	Page int
	Err  error
}

// Error implements the error interface
func (e *RemoteFetchError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("fetch datapoints for goal %s (page %d): %v", e.Goal, e.Page, e.Err)
	}
	return fmt.Sprintf("fetch datapoints for goal %s: %v", e.Goal, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RemoteFetchError) Is(target error) bool {
	return target == ErrRemoteFetch
}

// NewRemoteFetchError creates a new RemoteFetchError
func NewRemoteFetchError(goal string, page int, err error) *RemoteFetchError {
	return &RemoteFetchError{Goal: goal, Page: page, Err: err}
}

// RemoteWriteError means a create, update or delete failed after retries.
type RemoteWriteError struct {
	Operation string // "create", "update", "delete"
	Date      string
	ID        string
	Err       error
}

// Error implements the error interface
func (e *RemoteWriteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s datapoint %s (%s): %v", e.Operation, e.ID, e.Date, e.Err)
	}
	return fmt.Sprintf("%s datapoint for %s: %v", e.Operation, e.Date, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RemoteWriteError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RemoteWriteError) Is(target error) bool {
	return target == ErrRemoteWrite
}

// NewRemoteWriteError creates a new RemoteWriteError
func NewRemoteWriteError(operation, date, id string, err error) *RemoteWriteError {
	return &RemoteWriteError{Operation: operation, Date: date, ID: id, Err: err}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// PartialFailureError is returned when a run completed but some operations
// failed or were skipped.
type PartialFailureError struct {
	Failed     int
	Skipped    int
	Incomplete bool
}

// Error implements the error interface
func (e *PartialFailureError) Error() string {
	if e.Incomplete {
		return fmt.Sprintf("sync incomplete: %d failed, %d skipped", e.Failed, e.Skipped)
	}
	return fmt.Sprintf("sync finished with %d failed operations", e.Failed)
}

// Is implements errors.Is support
func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "date", etc.
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "open", "clone", "query"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsLocalDataUnavailable checks if the local dataset could not be loaded
func IsLocalDataUnavailable(err error) bool {
	return errors.Is(err, ErrLocalDataUnavailable)
}

// IsRemoteFetch checks if the remote dataset could not be fetched
func IsRemoteFetch(err error) bool {
	return errors.Is(err, ErrRemoteFetch)
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsPartialFailure checks if a run finished with failed operations
func IsPartialFailure(err error) bool {
	return errors.Is(err, ErrPartialFailure)
}

// IsFatal reports whether err aborts a run as a whole, as opposed to a
// partial failure where the run completed with some failed operations.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsPartialFailure(err)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapLocal wraps an error as a LocalDataUnavailableError
func WrapLocal(source, message string, err error) error {
	if err == nil {
		return nil
	}
	return NewLocalDataUnavailableError(source, message, err)
}
