package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/repository"
)

var providedIdPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RegistryService owns the server, scope, connection and mapping catalogs and
// enforces their referential guards
type RegistryService struct {
	repo   repository.RegistryRepository
	cipher *TokenCipher
}

// NewRegistryService creates a new RegistryService instance
func NewRegistryService(repo repository.RegistryRepository, cipher *TokenCipher) *RegistryService {
	return &RegistryService{
		repo:   repo,
		cipher: cipher,
	}
}

// CreateServer registers a new MCP resource server
func (s *RegistryService) CreateServer(ctx context.Context, req *models.CreateServerRequest) (*models.Server, error) {
	if !providedIdPattern.MatchString(req.ProvidedId) {
		return nil, fmt.Errorf("%w: providedId must be alphanumeric, dash or underscore", ErrInvalidRequest)
	}

	if _, err := s.repo.GetServerByProvidedId(ctx, req.ProvidedId); err == nil {
		return nil, repository.ErrServerAlreadyExists
	} else if !errors.Is(err, repository.ErrServerNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	server := &models.Server{
		Id:          uuid.NewString(),
		ProvidedId:  req.ProvidedId,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateServer(ctx, server); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"server_id":   server.Id,
		"provided_id": server.ProvidedId,
	}).Info("Resource server registered")
	return server, nil
}

// GetServer resolves a server by its provided id (the identifier appearing in
// endpoint paths)
func (s *RegistryService) GetServer(ctx context.Context, providedId string) (*models.Server, error) {
	return s.repo.GetServerByProvidedId(ctx, providedId)
}

// ListServers returns all registered resource servers
func (s *RegistryService) ListServers(ctx context.Context) ([]models.Server, error) {
	return s.repo.ListServers(ctx)
}

// CreateScope adds a scope to a server's catalog. ScopeId must be unique
// within the server.
func (s *RegistryService) CreateScope(ctx context.Context, serverId string, req *models.CreateScopeRequest) (*models.Scope, error) {
	if _, err := s.repo.GetServerById(ctx, serverId); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetScope(ctx, serverId, req.ScopeId); err == nil {
		return nil, repository.ErrScopeAlreadyExists
	} else if !errors.Is(err, repository.ErrScopeNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	scope := &models.Scope{
		Id:          uuid.NewString(),
		ScopeId:     req.ScopeId,
		ServerId:    serverId,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateScope(ctx, scope); err != nil {
		return nil, err
	}
	return scope, nil
}

// ListScopes returns the scope catalog of a server
func (s *RegistryService) ListScopes(ctx context.Context, serverId string) ([]models.Scope, error) {
	return s.repo.ListScopes(ctx, serverId)
}

// DeleteScope removes a scope. Fails with ErrScopeInUse while any mapping
// still references the scope. The reference check and the delete are not
// atomic; registry mutations are assumed to come from a single admin
// operator at a time.
func (s *RegistryService) DeleteScope(ctx context.Context, id string) error {
	scope, err := s.repo.GetScopeById(ctx, id)
	if err != nil {
		return err
	}

	mappings, err := s.repo.ListMappings(ctx, scope.ServerId, scope.ScopeId)
	if err != nil {
		return err
	}
	if len(mappings) > 0 {
		return fmt.Errorf("%w: %d mapping(s) reference scope %s", ErrScopeInUse, len(mappings), scope.ScopeId)
	}

	return s.repo.DeleteScope(ctx, id)
}

// CreateConnection registers a downstream OAuth provider for a server. The
// client secret is encrypted before it touches storage and never echoed back.
func (s *RegistryService) CreateConnection(ctx context.Context, serverId string, req *models.CreateConnectionRequest) (*models.Connection, error) {
	if _, err := s.repo.GetServerById(ctx, serverId); err != nil {
		return nil, err
	}

	providedId := req.ProvidedId
	if providedId == "" {
		providedId = uuid.NewString()
	} else if !providedIdPattern.MatchString(providedId) {
		return nil, fmt.Errorf("%w: providedId must be alphanumeric, dash or underscore", ErrInvalidRequest)
	}

	if _, err := s.repo.GetConnectionByProvidedId(ctx, serverId, providedId); err == nil {
		return nil, repository.ErrConnectionExists
	} else if !errors.Is(err, repository.ErrConnectionNotFound) {
		return nil, err
	}

	encryptedSecret, err := s.cipher.Encrypt(req.ClientSecret)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conn := &models.Connection{
		Id:           uuid.NewString(),
		ProvidedId:   providedId,
		ServerId:     serverId,
		FriendlyName: req.FriendlyName,
		ClientId:     req.ClientId,
		ClientSecret: encryptedSecret,
		AuthorizeUrl: req.AuthorizeUrl,
		TokenUrl:     req.TokenUrl,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateConnection(ctx, conn); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"connection_id": conn.Id,
		"server_id":     serverId,
		"friendly_name": conn.FriendlyName,
	}).Info("Downstream connection registered")
	return conn, nil
}

// ListConnections returns the downstream providers registered for a server
func (s *RegistryService) ListConnections(ctx context.Context, serverId string) ([]models.Connection, error) {
	return s.repo.ListConnections(ctx, serverId)
}

// DeleteConnection removes a connection. Fails with ErrConnectionInUse while
// any mapping still references the connection. Like DeleteScope, the check
// and the delete are not atomic under concurrent admin writers.
func (s *RegistryService) DeleteConnection(ctx context.Context, id string) error {
	if _, err := s.repo.GetConnectionById(ctx, id); err != nil {
		return err
	}

	mappings, err := s.repo.ListMappingsByConnection(ctx, id)
	if err != nil {
		return err
	}
	if len(mappings) > 0 {
		return fmt.Errorf("%w: %d mapping(s) reference connection %s", ErrConnectionInUse, len(mappings), id)
	}

	return s.repo.DeleteConnection(ctx, id)
}

// CreateMapping wires a scope to a connection. Both must belong to serverId.
func (s *RegistryService) CreateMapping(ctx context.Context, serverId string, req *models.CreateMappingRequest) (*models.ScopeMapping, error) {
	scope, err := s.repo.GetScope(ctx, serverId, req.ScopeId)
	if err != nil {
		return nil, err
	}

	conn, err := s.repo.GetConnectionById(ctx, req.ConnectionId)
	if err != nil {
		return nil, err
	}

	if scope.ServerId != conn.ServerId {
		return nil, ErrMappingServerMismatch
	}

	now := time.Now().UTC()
	mapping := &models.ScopeMapping{
		Id:              uuid.NewString(),
		ServerId:        serverId,
		ScopeId:         req.ScopeId,
		ConnectionId:    req.ConnectionId,
		DownstreamScope: req.DownstreamScope,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateMapping(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// ListMappings returns mappings scoped to (serverId) or (serverId, scopeId)
func (s *RegistryService) ListMappings(ctx context.Context, serverId, scopeId string) ([]models.ScopeMapping, error) {
	return s.repo.ListMappings(ctx, serverId, scopeId)
}

// DeleteMapping removes a mapping row
func (s *RegistryService) DeleteMapping(ctx context.Context, id string) error {
	return s.repo.DeleteMapping(ctx, id)
}
