package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/services"
)

// DiscoveryHandler serves the RFC 8414 authorization server metadata and the
// broker's JWKS document
type DiscoveryHandler struct {
	tokens   *services.TokenService
	registry *services.RegistryService
	baseURL  string
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(tokens *services.TokenService, registry *services.RegistryService, baseURL string) *DiscoveryHandler {
	return &DiscoveryHandler{
		tokens:   tokens,
		registry: registry,
		baseURL:  baseURL,
	}
}

// Metadata handles GET /.well-known/oauth-authorization-server/mcp/:server_id/:version
func (h *DiscoveryHandler) Metadata(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondOAuthError(c, err)
		return
	}

	scopes, err := h.registry.ListScopes(c.Request.Context(), server.Id)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	scopeIds := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scopeIds = append(scopeIds, scope.ScopeId)
	}

	version := c.Param("version")
	suffix := fmt.Sprintf("/mcp/%s/%s", server.ProvidedId, version)

	c.JSON(http.StatusOK, models.AuthorizationServerMetadata{
		Issuer:                h.tokens.Issuer(server.ProvidedId, version),
		AuthorizationEndpoint: h.baseURL + "/api/v1/auth/authorize" + suffix,
		TokenEndpoint:         h.baseURL + "/api/v1/auth/token" + suffix,
		RegistrationEndpoint:  h.baseURL + "/api/v1/auth/clients/register" + suffix,
		IntrospectionEndpoint: h.baseURL + "/api/v1/auth/introspect" + suffix,
		JwksUri:               h.baseURL + "/.well-known/jwks.json",
		ScopesSupported:       scopeIds,
		ResponseTypesSupported: []string{
			models.ResponseTypeCode,
		},
		GrantTypesSupported: []string{
			models.GrantTypeAuthorizationCode,
			models.GrantTypeRefreshToken,
			models.GrantTypeTokenExchange,
		},
		TokenEndpointAuthMethodsSupported: []string{
			models.TokenEndpointAuthNone,
		},
		CodeChallengeMethodsSupported: []string{
			models.CodeChallengeMethodS256,
		},
	})
}

// JWKS handles GET /.well-known/jwks.json
func (h *DiscoveryHandler) JWKS(c *gin.Context) {
	c.JSON(http.StatusOK, h.tokens.JWKS())
}
