package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/services"
)

// RegistryHandler exposes the administrative CRUD surface for servers,
// scopes, connections and scope mappings
type RegistryHandler struct {
	registry *services.RegistryService
}

// NewRegistryHandler creates a new registry handler
func NewRegistryHandler(registry *services.RegistryService) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

// CreateServer handles POST /servers
func (h *RegistryHandler) CreateServer(c *gin.Context) {
	var req models.CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	server, err := h.registry.CreateServer(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, server)
}

// ListServers handles GET /servers
func (h *RegistryHandler) ListServers(c *gin.Context) {
	servers, err := h.registry.ListServers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers})
}

// GetServer handles GET /servers/:server_id
func (h *RegistryHandler) GetServer(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, server)
}

// CreateScope handles POST /servers/:server_id/scopes
func (h *RegistryHandler) CreateScope(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req models.CreateScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	scope, err := h.registry.CreateScope(c.Request.Context(), server.Id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, scope)
}

// ListScopes handles GET /servers/:server_id/scopes
func (h *RegistryHandler) ListScopes(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	scopes, err := h.registry.ListScopes(c.Request.Context(), server.Id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scopes": scopes})
}

// DeleteScope handles DELETE /servers/:server_id/scopes/:scope_id
func (h *RegistryHandler) DeleteScope(c *gin.Context) {
	if err := h.registry.DeleteScope(c.Request.Context(), c.Param("scope_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateConnection handles POST /servers/:server_id/connections
func (h *RegistryHandler) CreateConnection(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req models.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	conn, err := h.registry.CreateConnection(c.Request.Context(), server.Id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conn.ToResponse())
}

// ListConnections handles GET /servers/:server_id/connections
func (h *RegistryHandler) ListConnections(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	conns, err := h.registry.ListConnections(c.Request.Context(), server.Id)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.ConnectionResponse, 0, len(conns))
	for i := range conns {
		responses = append(responses, conns[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"connections": responses})
}

// DeleteConnection handles DELETE /servers/:server_id/connections/:connection_id
func (h *RegistryHandler) DeleteConnection(c *gin.Context) {
	if err := h.registry.DeleteConnection(c.Request.Context(), c.Param("connection_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateMapping handles POST /servers/:server_id/mappings
func (h *RegistryHandler) CreateMapping(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req models.CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	mapping, err := h.registry.CreateMapping(c.Request.Context(), server.Id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapping)
}

// ListMappings handles GET /servers/:server_id/mappings with an optional
// scope_id query filter
func (h *RegistryHandler) ListMappings(c *gin.Context) {
	server, err := h.registry.GetServer(c.Request.Context(), c.Param("server_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	mappings, err := h.registry.ListMappings(c.Request.Context(), server.Id, c.Query("scope_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings})
}

// DeleteMapping handles DELETE /servers/:server_id/mappings/:mapping_id
func (h *RegistryHandler) DeleteMapping(c *gin.Context) {
	if err := h.registry.DeleteMapping(c.Request.Context(), c.Param("mapping_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
