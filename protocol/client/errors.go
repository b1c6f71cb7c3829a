package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrServerUnavailable is returned when the upstream Git server is
// unreachable or returns a 5xx/429 status. Use errors.Is, not a type
// assertion, since the concrete type carries request-specific detail.
var ErrServerUnavailable = errors.New("client: server unavailable")

// ErrUnauthorized is returned on HTTP 401.
var ErrUnauthorized = errors.New("client: unauthorized")

// ErrPermissionDenied is returned on HTTP 403.
var ErrPermissionDenied = errors.New("client: permission denied")

// ErrRepositoryNotFound is returned on HTTP 404.
var ErrRepositoryNotFound = errors.New("client: repository not found")

// ServerUnavailableError carries the HTTP method and status code of a
// request that failed because the server is unavailable.
type ServerUnavailableError struct {
	StatusCode int
	Operation  string
	Underlying error
}

func NewServerUnavailableError(operation string, statusCode int, underlying error) *ServerUnavailableError {
	return &ServerUnavailableError{Operation: operation, StatusCode: statusCode, Underlying: underlying}
}

func (e *ServerUnavailableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("server unavailable (operation %s): %v", e.Operation, e.Underlying)
	}
	return fmt.Sprintf("server unavailable (operation %s, status code %d): %v", e.Operation, e.StatusCode, e.Underlying)
}

func (e *ServerUnavailableError) Unwrap() error { return e.Underlying }
func (e *ServerUnavailableError) Is(target error) bool {
	return target == ErrServerUnavailable
}

// CheckServerUnavailable returns a *ServerUnavailableError if res
// indicates the server is down or overloaded (5xx, or 429 Too Many
// Requests). The caller remains responsible for closing res.Body.
func CheckServerUnavailable(res *http.Response) error {
	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		operation := ""
		if res.Request != nil {
			operation = res.Request.Method
		}
		return NewServerUnavailableError(operation, res.StatusCode, fmt.Errorf("got status %s", res.Status))
	}
	return nil
}

// UnauthorizedError carries request context for an HTTP 401 response.
type UnauthorizedError struct {
	Operation  string
	Endpoint   string
	Underlying error
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized (operation %s, endpoint %s): %v", e.Operation, e.Endpoint, e.Underlying)
}
func (e *UnauthorizedError) Unwrap() error     { return e.Underlying }
func (e *UnauthorizedError) Is(t error) bool    { return t == ErrUnauthorized }

// PermissionDeniedError carries request context for an HTTP 403 response.
type PermissionDeniedError struct {
	Operation  string
	Endpoint   string
	Underlying error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied (operation %s, endpoint %s): %v", e.Operation, e.Endpoint, e.Underlying)
}
func (e *PermissionDeniedError) Unwrap() error  { return e.Underlying }
func (e *PermissionDeniedError) Is(t error) bool { return t == ErrPermissionDenied }

// RepositoryNotFoundError carries request context for an HTTP 404 response.
type RepositoryNotFoundError struct {
	Operation  string
	Endpoint   string
	Underlying error
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository not found (operation %s, endpoint %s): %v", e.Operation, e.Endpoint, e.Underlying)
}
func (e *RepositoryNotFoundError) Unwrap() error  { return e.Underlying }
func (e *RepositoryNotFoundError) Is(t error) bool { return t == ErrRepositoryNotFound }

// CheckHTTPClientError returns the structured error matching a 4xx
// response, or nil for a non-4xx status or a 4xx code we don't model
// specifically (the caller falls back to a generic error in that case).
func CheckHTTPClientError(res *http.Response) error {
	if res.StatusCode < 400 || res.StatusCode >= 500 {
		return nil
	}
	operation, endpoint := "", ""
	if res.Request != nil {
		operation = res.Request.Method
		endpoint = extractEndpoint(res.Request.URL.Path)
	}
	underlying := fmt.Errorf("got status %s", res.Status)

	switch res.StatusCode {
	case http.StatusUnauthorized:
		return &UnauthorizedError{Operation: operation, Endpoint: endpoint, Underlying: underlying}
	case http.StatusForbidden:
		return &PermissionDeniedError{Operation: operation, Endpoint: endpoint, Underlying: underlying}
	case http.StatusNotFound:
		return &RepositoryNotFoundError{Operation: operation, Endpoint: endpoint, Underlying: underlying}
	default:
		return nil
	}
}

func extractEndpoint(path string) string {
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	switch {
	case strings.Contains(path, "git-upload-pack"):
		return "git-upload-pack"
	case strings.Contains(path, "info/refs"):
		return "info/refs"
	default:
		return "unknown"
	}
}
