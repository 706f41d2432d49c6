package models

import "time"

// Server represents an MCP resource server protected by the broker
type Server struct {
	Id          string    `json:"id" dynamodbav:"Id"`
	ProvidedId  string    `json:"providedId" dynamodbav:"ProvidedId"` // Human-chosen identifier used in endpoint paths
	Name        string    `json:"name" dynamodbav:"Name"`
	Description string    `json:"description" dynamodbav:"Description"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"CreatedAt"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"UpdatedAt"`
}

// Scope represents a single MCP scope identifier registered for a server
type Scope struct {
	Id          string    `json:"id" dynamodbav:"Id"`
	ScopeId     string    `json:"scopeId" dynamodbav:"ScopeId"` // e.g. "tool:read", unique within a server
	ServerId    string    `json:"serverId" dynamodbav:"ServerId"`
	Description string    `json:"description" dynamodbav:"Description"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"CreatedAt"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"UpdatedAt"`
}

// Connection represents a downstream OAuth provider registration for a server.
// The client secret is stored encrypted and never serialized back to callers.
type Connection struct {
	Id           string    `json:"id" dynamodbav:"Id"`
	ProvidedId   string    `json:"providedId" dynamodbav:"ProvidedId"` // Target-resource key for token exchange
	ServerId     string    `json:"serverId" dynamodbav:"ServerId"`
	FriendlyName string    `json:"friendlyName" dynamodbav:"FriendlyName"`
	ClientId     string    `json:"clientId" dynamodbav:"ClientId"`
	ClientSecret string    `json:"-" dynamodbav:"ClientSecret"` // Encrypted at rest
	AuthorizeUrl string    `json:"authorizeUrl" dynamodbav:"AuthorizeUrl"`
	TokenUrl     string    `json:"tokenUrl" dynamodbav:"TokenUrl"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"CreatedAt"`
	UpdatedAt    time.Time `json:"updatedAt" dynamodbav:"UpdatedAt"`
}

// ScopeMapping says that granting ScopeId requires the resource owner to also
// grant DownstreamScope at the connection identified by ConnectionId
type ScopeMapping struct {
	Id              string    `json:"id" dynamodbav:"Id"`
	ServerId        string    `json:"serverId" dynamodbav:"ServerId"`
	ScopeId         string    `json:"scopeId" dynamodbav:"ScopeId"`
	ConnectionId    string    `json:"connectionId" dynamodbav:"ConnectionId"`
	DownstreamScope string    `json:"downstreamScope" dynamodbav:"DownstreamScope"`
	CreatedAt       time.Time `json:"createdAt" dynamodbav:"CreatedAt"`
	UpdatedAt       time.Time `json:"updatedAt" dynamodbav:"UpdatedAt"`
}

// CreateServerRequest is the admin payload for registering a resource server
type CreateServerRequest struct {
	ProvidedId  string `json:"providedId" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateScopeRequest is the admin payload for adding a scope to a server
type CreateScopeRequest struct {
	ScopeId     string `json:"scopeId" binding:"required"`
	Description string `json:"description"`
}

// CreateConnectionRequest is the admin payload for registering a downstream
// OAuth provider. The secret is write-only.
type CreateConnectionRequest struct {
	ProvidedId   string `json:"providedId"`
	FriendlyName string `json:"friendlyName" binding:"required"`
	ClientId     string `json:"clientId" binding:"required"`
	ClientSecret string `json:"clientSecret" binding:"required"`
	AuthorizeUrl string `json:"authorizeUrl" binding:"required"`
	TokenUrl     string `json:"tokenUrl" binding:"required"`
}

// CreateMappingRequest is the admin payload for wiring a scope to a connection
type CreateMappingRequest struct {
	ScopeId         string `json:"scopeId" binding:"required"`
	ConnectionId    string `json:"connectionId" binding:"required"`
	DownstreamScope string `json:"downstreamScope" binding:"required"`
}

// ConnectionResponse is a Connection with the secret masked
type ConnectionResponse struct {
	Id           string    `json:"id"`
	ProvidedId   string    `json:"providedId"`
	ServerId     string    `json:"serverId"`
	FriendlyName string    `json:"friendlyName"`
	ClientId     string    `json:"clientId"`
	ClientSecret string    `json:"clientSecret,omitempty"` // Always "********" when set
	AuthorizeUrl string    `json:"authorizeUrl"`
	TokenUrl     string    `json:"tokenUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToResponse masks the stored secret for API consumers
func (c *Connection) ToResponse() ConnectionResponse {
	resp := ConnectionResponse{
		Id:           c.Id,
		ProvidedId:   c.ProvidedId,
		ServerId:     c.ServerId,
		FriendlyName: c.FriendlyName,
		ClientId:     c.ClientId,
		AuthorizeUrl: c.AuthorizeUrl,
		TokenUrl:     c.TokenUrl,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.ClientSecret != "" {
		resp.ClientSecret = "********"
	}
	return resp
}
