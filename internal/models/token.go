package models

// Token exchange type identifiers from RFC 8693
const (
	TokenTypeAccessToken = "urn:ietf:params:oauth:token-type:access_token"

	TokenTypeBearer = "Bearer"
)

// TokenRequest is the body of the token endpoint. Which fields are required
// depends on grant_type.
type TokenRequest struct {
	GrantType    string `json:"grant_type" form:"grant_type" binding:"required"`
	ClientId     string `json:"client_id" form:"client_id"`
	Code         string `json:"code" form:"code"`
	RedirectUri  string `json:"redirect_uri" form:"redirect_uri"`
	CodeVerifier string `json:"code_verifier" form:"code_verifier"`
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
	Scope        string `json:"scope" form:"scope"`
	Resource     string `json:"resource" form:"resource"`

	// RFC 8693 token exchange fields
	SubjectToken     string `json:"subject_token" form:"subject_token"`
	SubjectTokenType string `json:"subject_token_type" form:"subject_token_type"`
}

// TokenResponse is the successful token endpoint response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenExchangeResponse is the RFC 8693 response carrying a downstream token
type TokenExchangeResponse struct {
	AccessToken     string `json:"access_token"`
	IssuedTokenType string `json:"issued_token_type"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int64  `json:"expires_in"`
	Scope           string `json:"scope,omitempty"`
}

// IntrospectRequest is the RFC 7662 introspection body
type IntrospectRequest struct {
	Token string `json:"token" form:"token" binding:"required"`
}

// IntrospectResponse is the RFC 7662 introspection result. Only Active is
// present for invalid tokens.
type IntrospectResponse struct {
	Active           bool   `json:"active"`
	TokenType        string `json:"token_type,omitempty"`
	ClientId         string `json:"client_id,omitempty"`
	Sub              string `json:"sub,omitempty"`
	Aud              string `json:"aud,omitempty"`
	Iss              string `json:"iss,omitempty"`
	Jti              string `json:"jti,omitempty"`
	Exp              int64  `json:"exp,omitempty"`
	Iat              int64  `json:"iat,omitempty"`
	Scope            string `json:"scope,omitempty"`
	ServerIdentifier string `json:"server_identifier,omitempty"`
	Resource         string `json:"resource,omitempty"`
	Version          string `json:"version,omitempty"`
}

// AuthorizationServerMetadata is the RFC 8414 discovery document published
// per server/version
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	JwksUri                           string   `json:"jwks_uri"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}
