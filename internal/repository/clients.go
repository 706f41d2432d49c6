package repository

import (
	"context"

	"github.com/imyashkale/authbroker/internal/database"
	"github.com/imyashkale/authbroker/internal/models"
)

// ClientRepository defines the interface for registered OAuth client operations
type ClientRepository interface {
	CreateClient(ctx context.Context, c *models.Client) error
	GetClientById(ctx context.Context, clientId string) (*models.Client, error)
	GetClientByName(ctx context.Context, serverId, clientName string) (*models.Client, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	DeleteClient(ctx context.Context, clientId string) error
}

// clientRepository is the concrete implementation of ClientRepository
type clientRepository struct {
	db *database.ClientDB
}

// NewClientRepository creates a new instance of ClientRepository
func NewClientRepository(db *database.ClientDB) ClientRepository {
	return &clientRepository{
		db: db,
	}
}

func (r *clientRepository) CreateClient(ctx context.Context, c *models.Client) error {
	return r.db.CreateClient(ctx, c)
}

func (r *clientRepository) GetClientById(ctx context.Context, clientId string) (*models.Client, error) {
	return r.db.GetClientById(ctx, clientId)
}

func (r *clientRepository) GetClientByName(ctx context.Context, serverId, clientName string) (*models.Client, error) {
	return r.db.GetClientByName(ctx, serverId, clientName)
}

func (r *clientRepository) ListClients(ctx context.Context) ([]models.Client, error) {
	return r.db.ListClients(ctx)
}

func (r *clientRepository) DeleteClient(ctx context.Context, clientId string) error {
	return r.db.DeleteClient(ctx, clientId)
}

// Re-export database errors for use in handlers
var (
	ErrClientNotFound      = database.ErrClientNotFound
	ErrClientAlreadyExists = database.ErrClientAlreadyExists
)
