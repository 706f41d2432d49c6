package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/services"
)

// TokenHandler serves the OAuth token endpoint with its three grants and the
// RFC 7662 introspection endpoint
type TokenHandler struct {
	journeys *services.JourneyService
	exchange *services.TokenExchangeService
	tokens   *services.TokenService
	registry *services.RegistryService
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(
	journeys *services.JourneyService,
	exchange *services.TokenExchangeService,
	tokens *services.TokenService,
	registry *services.RegistryService,
) *TokenHandler {
	return &TokenHandler{
		journeys: journeys,
		exchange: exchange,
		tokens:   tokens,
		registry: registry,
	}
}

// Token handles POST /auth/token/mcp/:server_id/:version
func (h *TokenHandler) Token(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondOAuthError(c, err)
		return
	}

	var req models.TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "invalid_request",
			Description: err.Error(),
		})
		return
	}

	version := c.Param("version")

	switch req.GrantType {
	case models.GrantTypeAuthorizationCode:
		resp, err := h.journeys.ExchangeCode(c.Request.Context(), server, version, &req)
		if err != nil {
			respondOAuthError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)

	case models.GrantTypeRefreshToken:
		resp, err := h.journeys.RefreshGrant(c.Request.Context(), server, version, &req)
		if err != nil {
			respondOAuthError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)

	case models.GrantTypeTokenExchange:
		resp, err := h.exchange.Exchange(c.Request.Context(), server, &req)
		if err != nil {
			respondOAuthError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)

	default:
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "unsupported_grant_type",
			Description: "supported grants: authorization_code, refresh_token, token-exchange",
		})
	}
}

// Introspect handles POST /auth/introspect/mcp/:server_id/:version. Invalid
// tokens yield {"active": false}, never an error detail.
func (h *TokenHandler) Introspect(c *gin.Context) {
	var req models.IntrospectRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "invalid_request",
			Description: "token parameter is required",
		})
		return
	}

	c.JSON(http.StatusOK, h.tokens.Introspect(req.Token))
}
