package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ResponseError is a non-2xx answer of the API.
type ResponseError struct {
	StatusCode int
	Message    string
	// Errors holds the field report of a 400 validation envelope.
	Errors json.RawMessage
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsValidation reports whether the answer carried a field report.
func (e *ResponseError) IsValidation() bool {
	return e.StatusCode == http.StatusBadRequest && len(e.Errors) > 0
}

func responseError(resp *http.Response, body []byte) error {
	e := &ResponseError{StatusCode: resp.StatusCode}
	var payload struct {
		Message string          `json:"message"`
		Errors  json.RawMessage `json:"errors"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Message
		e.Errors = payload.Errors
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
