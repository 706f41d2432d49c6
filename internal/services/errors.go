package services

import "errors"

// Sentinel errors shared across the broker services. Handlers map these onto
// HTTP statuses and the OAuth error-response shape.
var (
	// ErrInvalidRequest - malformed or inconsistent request parameters
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidScope - a requested scope id is not registered for the server
	ErrInvalidScope = errors.New("invalid scope")
	// ErrInvalidGrant - bad, expired or reused authorization artifact
	ErrInvalidGrant = errors.New("invalid grant")
	// ErrAuthorizationPending - the journey still has pending connection flows;
	// expected while downstream consent is in flight, not an alarm condition
	ErrAuthorizationPending = errors.New("authorization pending")
	// ErrDownstreamAuthRequired - token exchange needs a fresh downstream consent
	ErrDownstreamAuthRequired = errors.New("downstream authorization required")
	// ErrVerificationFailed - bad signature, unknown key or expired token
	ErrVerificationFailed = errors.New("token verification failed")
	// ErrUpstreamFailure - a downstream provider endpoint errored or was unreachable
	ErrUpstreamFailure = errors.New("upstream provider failure")
	// ErrJourneyTerminal - the journey already reached a terminal state
	ErrJourneyTerminal = errors.New("journey is terminal")
	// ErrConsentDenied - the resource owner rejected the broker consent prompt
	ErrConsentDenied = errors.New("consent denied")

	// Registry referential guards
	ErrScopeInUse            = errors.New("scope has live mappings")
	ErrConnectionInUse       = errors.New("connection has live mappings")
	ErrMappingServerMismatch = errors.New("scope and connection belong to different servers")
)
