package models

// ErrorResponse is the generic error body returned by administrative endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// OAuthError is the RFC 6749 error body returned by the protocol endpoints
// so generic OAuth clients can render failures without special-casing
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}
