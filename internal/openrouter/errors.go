package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx chat-completions response, with whatever
// detail could be extracted from the error body.
type APIError struct {
	Status   int
	Message  string
	Provider string
	Raw      string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "openrouter: status %d", e.Status)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Provider != "" {
		fmt.Fprintf(&b, " (provider %s)", e.Provider)
	}
	return b.String()
}

// ProviderName returns the upstream provider that produced the error,
// or "Unknown" when the body did not name one.
func (e *APIError) ProviderName() string {
	if e.Provider == "" {
		return "Unknown"
	}
	return e.Provider
}

type errorBody struct {
	Error struct {
		Message  string `json:"message"`
		Metadata struct {
			ProviderName string `json:"provider_name"`
			Raw          string `json:"raw"`
		} `json:"metadata"`
	} `json:"error"`
}

// ParseAPIError builds an APIError from a status code and response
// body. Extraction is best effort: a body that is not the expected
// error envelope still yields a usable error carrying the raw text.
func ParseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Raw: strings.TrimSpace(string(body))}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}
	apiErr.Message = parsed.Error.Message
	apiErr.Provider = parsed.Error.Metadata.ProviderName
	if parsed.Error.Metadata.Raw != "" {
		apiErr.Raw = parsed.Error.Metadata.Raw
	}
	return apiErr
}
