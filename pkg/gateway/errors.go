package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthInvalid indicates the session token was rejected. Callers must de-authenticate.
	ErrAuthInvalid = errors.New("auth invalid")

	// ErrInvalidResponse indicates a malformed or "not ok" payload.
	ErrInvalidResponse = errors.New("invalid response")
)

const (
	CodeTransport       = "transport"
	CodeInvalidResponse = "invalid_response"
	CodeAuthInvalid     = "auth_invalid"
)

// RemoteError is a typed failure surfaced to the UI. It never invalidates the session.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsAuthInvalid reports whether err carries the auth-invalid signal.
func IsAuthInvalid(err error) bool {
	return errors.Is(err, ErrAuthInvalid)
}

// AsRemoteError converts any non-auth error into a *RemoteError for display.
// Malformed payloads map to CodeInvalidResponse, everything else to CodeTransport.
func AsRemoteError(err error) *RemoteError {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re
	}
	if errors.Is(err, ErrInvalidResponse) {
		return &RemoteError{Code: CodeInvalidResponse, Message: err.Error(), Err: err}
	}
	return &RemoteError{Code: CodeTransport, Message: err.Error(), Err: err}
}
