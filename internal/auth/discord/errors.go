package discord

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoRefreshToken is returned when an expired token has to be refreshed
// but no refresh token was ever stored for it.
var ErrNoRefreshToken = errors.New("no refresh token available")

// RequestError reports a failed call to Discord: either a transport failure
// (Status == 0) or a non-2xx response carrying its status code.
type RequestError struct {
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return "request error: " + e.Detail
	}
	return fmt.Sprintf("request error: status %d %s: %s", e.Status, http.StatusText(e.Status), e.Detail)
}

// ParseError reports a response body that did not decode into the expected shape.
type ParseError struct {
	Detail string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Detail
}

// ConfigurationError reports a required credential that has not been configured yet.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return e.Field + " not found"
}

// StatusCode returns the HTTP status carried by a RequestError in err's chain, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}
