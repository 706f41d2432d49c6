package router

import (
	"github.com/gin-gonic/gin"

	"github.com/imyashkale/authbroker/internal/handlers"
	"github.com/imyashkale/authbroker/internal/middleware"
)

// Setup configures and returns the application router
func Setup(
	adminToken string,
	healthHandler *handlers.HealthHandler,
	discoveryHandler *handlers.DiscoveryHandler,
	clientHandler *handlers.ClientHandler,
	authorizeHandler *handlers.AuthorizeHandler,
	tokenHandler *handlers.TokenHandler,
	registryHandler *handlers.RegistryHandler,
) *gin.Engine {

	// Create a new Gin router
	router := gin.Default()

	// Apply CORS middleware globally
	router.Use(middleware.CORS())

	// Discovery documents live outside the versioned API per RFC 8414
	router.GET("/.well-known/oauth-authorization-server/mcp/:server_id/:version", discoveryHandler.Metadata)
	router.GET("/.well-known/jwks.json", discoveryHandler.JWKS)

	// API v1 routes
	v1 := router.Group("/api/v1")

	// Health check
	v1.GET("/health", healthHandler.Check)

	// OAuth surface used by MCP clients, the consent UI and downstream
	// provider redirects. Authenticated by the protocol itself (PKCE,
	// signed tokens), not by the admin token.
	auth := v1.Group("/auth")
	{
		auth.POST("/clients/register/mcp/:server_id/:version", clientHandler.Register)
		auth.GET("/clients/:client_id", clientHandler.Get)

		auth.GET("/authorize/mcp/:server_id/:version", authorizeHandler.Authorize)
		auth.POST("/authorize/mcp/:server_id/:version", authorizeHandler.Decide)
		auth.GET("/flow/:flow_id", authorizeHandler.Flow)
		auth.GET("/callback", authorizeHandler.Callback)

		auth.POST("/token/mcp/:server_id/:version", tokenHandler.Token)
		auth.POST("/introspect/mcp/:server_id/:version", tokenHandler.Introspect)
	}

	// Administrative surface behind the static bearer token
	admin := v1.Group("")
	admin.Use(middleware.AdminAuth(adminToken))
	{
		admin.GET("/auth/clients", clientHandler.List)
		admin.DELETE("/auth/clients/:client_id", clientHandler.Revoke)

		servers := admin.Group("/servers")
		{
			servers.POST("", registryHandler.CreateServer)
			servers.GET("", registryHandler.ListServers)
			servers.GET("/:server_id", registryHandler.GetServer)

			servers.POST("/:server_id/scopes", registryHandler.CreateScope)
			servers.GET("/:server_id/scopes", registryHandler.ListScopes)
			servers.DELETE("/:server_id/scopes/:scope_id", registryHandler.DeleteScope)

			servers.POST("/:server_id/connections", registryHandler.CreateConnection)
			servers.GET("/:server_id/connections", registryHandler.ListConnections)
			servers.DELETE("/:server_id/connections/:connection_id", registryHandler.DeleteConnection)

			servers.POST("/:server_id/mappings", registryHandler.CreateMapping)
			servers.GET("/:server_id/mappings", registryHandler.ListMappings)
			servers.DELETE("/:server_id/mappings/:mapping_id", registryHandler.DeleteMapping)
		}
	}

	return router
}
