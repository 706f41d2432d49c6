package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/services"
)

// AuthorizeHandler drives the authorization journey endpoints: journey start,
// consent decisions from the external consent UI and the shared downstream
// callback the providers redirect back to.
type AuthorizeHandler struct {
	journeys *services.JourneyService
	registry *services.RegistryService
}

// NewAuthorizeHandler creates a new authorize handler
func NewAuthorizeHandler(journeys *services.JourneyService, registry *services.RegistryService) *AuthorizeHandler {
	return &AuthorizeHandler{journeys: journeys, registry: registry}
}

// Authorize handles GET /auth/authorize/mcp/:server_id/:version. It validates
// the request, persists a new journey and returns the consent descriptor the
// external consent UI renders.
func (h *AuthorizeHandler) Authorize(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondOAuthError(c, err)
		return
	}

	if responseType := c.Query("response_type"); responseType != models.ResponseTypeCode {
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "unsupported_response_type",
			Description: "only the code response type is supported",
		})
		return
	}

	params := &services.StartJourneyParams{
		ClientId:            c.Query("client_id"),
		Server:              server,
		Scope:               strings.Fields(c.Query("scope")),
		RedirectUri:         c.Query("redirect_uri"),
		State:               c.Query("state"),
		Resource:            c.Query("resource"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
	}

	descriptor, err := h.journeys.StartJourney(c.Request.Context(), params)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, descriptor)
}

// Decide handles POST /auth/authorize/mcp/:server_id/:version. The consent UI
// posts the resource owner's decision; the response tells it where to send
// the user agent next.
func (h *AuthorizeHandler) Decide(c *gin.Context) {
	var decision models.ConsentDecision
	if err := c.ShouldBindJSON(&decision); err != nil {
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "invalid_request",
			Description: err.Error(),
		})
		return
	}

	result, err := h.journeys.Decide(c.Request.Context(), &decision)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Flow handles GET /auth/flow/:flow_id, serving the consent descriptor for a
// journey already in progress
func (h *AuthorizeHandler) Flow(c *gin.Context) {
	descriptor, err := h.journeys.Describe(c.Request.Context(), c.Param("flow_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, descriptor)
}

// Callback handles GET /auth/callback, the single redirect URI every
// downstream provider is configured with. It advances the journey and
// redirects the user agent to the next hop.
func (h *AuthorizeHandler) Callback(c *gin.Context) {
	result, err := h.journeys.HandleDownstreamCallback(
		c.Request.Context(),
		c.Query("state"),
		c.Query("code"),
		c.Query("error"),
		c.Query("error_description"),
	)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.Redirect(http.StatusFound, result.RedirectUri)
}
