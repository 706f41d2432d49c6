package models

import "time"

// Supported values for dynamically registered MCP clients
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeTokenExchange     = "urn:ietf:params:oauth:grant-type:token-exchange"

	TokenEndpointAuthNone = "none"

	CodeChallengeMethodS256 = "S256"

	ResponseTypeCode = "code"
)

// Client represents a dynamically registered MCP OAuth client (RFC 7591)
type Client struct {
	ClientId                string    `json:"client_id" dynamodbav:"ClientId"`
	ServerId                string    `json:"-" dynamodbav:"ServerId"`
	ClientName              string    `json:"client_name" dynamodbav:"ClientName"`
	RedirectUris            []string  `json:"redirect_uris" dynamodbav:"RedirectUris"`
	GrantTypes              []string  `json:"grant_types" dynamodbav:"GrantTypes"`
	ResponseTypes           []string  `json:"response_types" dynamodbav:"ResponseTypes"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method" dynamodbav:"TokenEndpointAuthMethod"`
	Scope                   []string  `json:"scope,omitempty" dynamodbav:"Scope"`
	Contacts                []string  `json:"contacts,omitempty" dynamodbav:"Contacts"`
	CodeChallengeMethod     string    `json:"code_challenge_method,omitempty" dynamodbav:"CodeChallengeMethod"`
	ClientUri               string    `json:"client_uri,omitempty" dynamodbav:"ClientUri"`
	LogoUri                 string    `json:"logo_uri,omitempty" dynamodbav:"LogoUri"`
	IssuedAt                time.Time `json:"client_id_issued_at" dynamodbav:"IssuedAt"`
}

// HasRedirectUri reports whether uri exactly matches one of the client's
// registered redirect URIs. Partial matches are never accepted.
func (c *Client) HasRedirectUri(uri string) bool {
	for _, registered := range c.RedirectUris {
		if registered == uri {
			return true
		}
	}
	return false
}

// HasGrantType reports whether the client registered the given grant type
func (c *Client) HasGrantType(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// RegisterClientRequest is the RFC 7591 dynamic registration payload
type RegisterClientRequest struct {
	ClientName              string   `json:"client_name" binding:"required"`
	RedirectUris            []string `json:"redirect_uris" binding:"required"`
	GrantTypes              []string `json:"grant_types" binding:"required"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   []string `json:"scope"`
	Contacts                []string `json:"contacts"`
	CodeChallengeMethod     string   `json:"code_challenge_method"`
	ClientUri               string   `json:"client_uri"`
	LogoUri                 string   `json:"logo_uri"`
}
