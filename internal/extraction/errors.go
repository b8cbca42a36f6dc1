package extraction

import (
	"errors"
	"net/url"
)

// FallbackMessage is reported when the service fails without saying why
const FallbackMessage = "Failed to process document"

// ServiceError is returned when the extraction service answers with a
// non-success status code
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return FallbackMessage
	}
	return e.Message
}

// TransportError is returned when the request never completed
type TransportError struct {
	Err error
}

// Error reports the cause's own message, without the method and URL that
// net/http prepends.
func (e *TransportError) Error() string {
	var urlErr *url.Error
	if errors.As(e.Err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
