package repository

import (
	"context"

	"github.com/imyashkale/authbroker/internal/database"
	"github.com/imyashkale/authbroker/internal/models"
)

// RegistryRepository defines the interface for server, scope, connection and
// mapping operations
type RegistryRepository interface {
	// Server operations
	CreateServer(ctx context.Context, server *models.Server) error
	GetServerById(ctx context.Context, id string) (*models.Server, error)
	GetServerByProvidedId(ctx context.Context, providedId string) (*models.Server, error)
	ListServers(ctx context.Context) ([]models.Server, error)

	// Scope operations
	CreateScope(ctx context.Context, scope *models.Scope) error
	GetScope(ctx context.Context, serverId, scopeId string) (*models.Scope, error)
	GetScopeById(ctx context.Context, id string) (*models.Scope, error)
	ListScopes(ctx context.Context, serverId string) ([]models.Scope, error)
	DeleteScope(ctx context.Context, id string) error

	// Connection operations
	CreateConnection(ctx context.Context, conn *models.Connection) error
	GetConnectionById(ctx context.Context, id string) (*models.Connection, error)
	GetConnectionByProvidedId(ctx context.Context, serverId, providedId string) (*models.Connection, error)
	ListConnections(ctx context.Context, serverId string) ([]models.Connection, error)
	DeleteConnection(ctx context.Context, id string) error

	// Mapping operations
	CreateMapping(ctx context.Context, mapping *models.ScopeMapping) error
	ListMappings(ctx context.Context, serverId, scopeId string) ([]models.ScopeMapping, error)
	ListMappingsByConnection(ctx context.Context, connectionId string) ([]models.ScopeMapping, error)
	DeleteMapping(ctx context.Context, id string) error
}

// registryRepository is the concrete implementation of RegistryRepository
type registryRepository struct {
	db *database.RegistryDB
}

// NewRegistryRepository creates a new instance of RegistryRepository
func NewRegistryRepository(db *database.RegistryDB) RegistryRepository {
	return &registryRepository{
		db: db,
	}
}

func (r *registryRepository) CreateServer(ctx context.Context, server *models.Server) error {
	return r.db.CreateServer(ctx, server)
}

func (r *registryRepository) GetServerById(ctx context.Context, id string) (*models.Server, error) {
	return r.db.GetServerById(ctx, id)
}

func (r *registryRepository) GetServerByProvidedId(ctx context.Context, providedId string) (*models.Server, error) {
	return r.db.GetServerByProvidedId(ctx, providedId)
}

func (r *registryRepository) ListServers(ctx context.Context) ([]models.Server, error) {
	return r.db.ListServers(ctx)
}

func (r *registryRepository) CreateScope(ctx context.Context, scope *models.Scope) error {
	return r.db.CreateScope(ctx, scope)
}

func (r *registryRepository) GetScope(ctx context.Context, serverId, scopeId string) (*models.Scope, error) {
	return r.db.GetScope(ctx, serverId, scopeId)
}

func (r *registryRepository) GetScopeById(ctx context.Context, id string) (*models.Scope, error) {
	return r.db.GetScopeById(ctx, id)
}

func (r *registryRepository) ListScopes(ctx context.Context, serverId string) ([]models.Scope, error) {
	return r.db.ListScopes(ctx, serverId)
}

func (r *registryRepository) DeleteScope(ctx context.Context, id string) error {
	return r.db.DeleteScope(ctx, id)
}

func (r *registryRepository) CreateConnection(ctx context.Context, conn *models.Connection) error {
	return r.db.CreateConnection(ctx, conn)
}

func (r *registryRepository) GetConnectionById(ctx context.Context, id string) (*models.Connection, error) {
	return r.db.GetConnectionById(ctx, id)
}

func (r *registryRepository) GetConnectionByProvidedId(ctx context.Context, serverId, providedId string) (*models.Connection, error) {
	return r.db.GetConnectionByProvidedId(ctx, serverId, providedId)
}

func (r *registryRepository) ListConnections(ctx context.Context, serverId string) ([]models.Connection, error) {
	return r.db.ListConnections(ctx, serverId)
}

func (r *registryRepository) DeleteConnection(ctx context.Context, id string) error {
	return r.db.DeleteConnection(ctx, id)
}

func (r *registryRepository) CreateMapping(ctx context.Context, mapping *models.ScopeMapping) error {
	return r.db.CreateMapping(ctx, mapping)
}

func (r *registryRepository) ListMappings(ctx context.Context, serverId, scopeId string) ([]models.ScopeMapping, error) {
	return r.db.ListMappings(ctx, serverId, scopeId)
}

func (r *registryRepository) ListMappingsByConnection(ctx context.Context, connectionId string) ([]models.ScopeMapping, error) {
	return r.db.ListMappingsByConnection(ctx, connectionId)
}

func (r *registryRepository) DeleteMapping(ctx context.Context, id string) error {
	return r.db.DeleteMapping(ctx, id)
}

// Re-export database errors for use in handlers
var (
	ErrServerNotFound      = database.ErrServerNotFound
	ErrServerAlreadyExists = database.ErrServerAlreadyExists
	ErrScopeNotFound       = database.ErrScopeNotFound
	ErrScopeAlreadyExists  = database.ErrScopeAlreadyExists
	ErrConnectionNotFound  = database.ErrConnectionNotFound
	ErrConnectionExists    = database.ErrConnectionExists
	ErrMappingNotFound     = database.ErrMappingNotFound
)
