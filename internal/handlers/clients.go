package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/services"
)

// ClientHandler handles RFC 7591 dynamic client registration plus the
// administrative client listing and revocation endpoints
type ClientHandler struct {
	clients  *services.ClientService
	registry *services.RegistryService
}

// NewClientHandler creates a new client handler
func NewClientHandler(clients *services.ClientService, registry *services.RegistryService) *ClientHandler {
	return &ClientHandler{clients: clients, registry: registry}
}

// Register handles POST /auth/clients/register/mcp/:server_id/:version
func (h *ClientHandler) Register(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondOAuthError(c, err)
		return
	}

	var req models.RegisterClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "invalid_client_metadata",
			Description: err.Error(),
		})
		return
	}

	client, err := h.clients.Register(c.Request.Context(), server.Id, &req)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// Get handles GET /auth/clients/:client_id
func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.clients.Get(c.Request.Context(), c.Param("client_id"))
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// List handles GET /auth/clients (admin)
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.clients.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

// Revoke handles DELETE /auth/clients/:client_id (admin)
func (h *ClientHandler) Revoke(c *gin.Context) {
	if err := h.clients.Revoke(c.Request.Context(), c.Param("client_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
