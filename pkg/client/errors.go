package client

import "fmt"

// APIError is a non-success response from the provider. It carries the
// HTTP status and the message field of the response body, when one could
// be parsed.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calling API endpoint %s: %d - %s", e.Endpoint, e.Status, e.Message)
}

// AuthError means API key issuance failed: the auth endpoint answered
// successfully but without a usable key.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Reason
}
