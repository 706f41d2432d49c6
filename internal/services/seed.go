package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/imyashkale/authbroker/internal/config"
	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/repository"
)

// SeedService applies the optional YAML registry seed at startup. Seeding is
// idempotent: entries that already exist are left untouched, so the file can
// be shipped with every deploy.
type SeedService struct {
	registry *RegistryService
	repo     repository.RegistryRepository
}

// NewSeedService creates a new SeedService instance
func NewSeedService(registry *RegistryService, repo repository.RegistryRepository) *SeedService {
	return &SeedService{registry: registry, repo: repo}
}

// Apply loads the seed file at path and creates any missing registry entries
func (s *SeedService) Apply(ctx context.Context, path string) error {
	seed, err := config.LoadRegistrySeed(path)
	if err != nil {
		return err
	}

	for _, seedServer := range seed.Servers {
		if err := s.applyServer(ctx, &seedServer); err != nil {
			return fmt.Errorf("registry seed: server %s: %w", seedServer.ProvidedId, err)
		}
	}

	logger.WithField("servers", len(seed.Servers)).Info("Registry seed applied")
	return nil
}

func (s *SeedService) applyServer(ctx context.Context, seedServer *config.SeedServer) error {
	server, err := s.repo.GetServerByProvidedId(ctx, seedServer.ProvidedId)
	if err != nil {
		if !errors.Is(err, repository.ErrServerNotFound) {
			return err
		}
		server, err = s.registry.CreateServer(ctx, &models.CreateServerRequest{
			ProvidedId:  seedServer.ProvidedId,
			Name:        seedServer.Name,
			Description: seedServer.Description,
		})
		if err != nil {
			return err
		}
		logger.WithField("server_id", server.ProvidedId).Info("Seeded MCP server")
	}

	for _, seedScope := range seedServer.Scopes {
		if _, err := s.repo.GetScope(ctx, server.Id, seedScope.ScopeId); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrScopeNotFound) {
			return err
		}
		if _, err := s.registry.CreateScope(ctx, server.Id, &models.CreateScopeRequest{
			ScopeId:     seedScope.ScopeId,
			Description: seedScope.Description,
		}); err != nil {
			return err
		}
	}

	for _, seedConn := range seedServer.Connections {
		if _, err := s.repo.GetConnectionByProvidedId(ctx, server.Id, seedConn.ProvidedId); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrConnectionNotFound) {
			return err
		}
		if _, err := s.registry.CreateConnection(ctx, server.Id, &models.CreateConnectionRequest{
			ProvidedId:   seedConn.ProvidedId,
			FriendlyName: seedConn.FriendlyName,
			ClientId:     seedConn.ClientId,
			ClientSecret: seedConn.ClientSecret,
			AuthorizeUrl: seedConn.AuthorizeUrl,
			TokenUrl:     seedConn.TokenUrl,
		}); err != nil {
			return err
		}
	}

	for _, seedMapping := range seedServer.Mappings {
		conn, err := s.repo.GetConnectionByProvidedId(ctx, server.Id, seedMapping.ConnectionId)
		if err != nil {
			return fmt.Errorf("mapping %s -> %s: %w", seedMapping.ScopeId, seedMapping.ConnectionId, err)
		}
		exists, err := s.mappingExists(ctx, server.Id, seedMapping.ScopeId, conn.Id)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.registry.CreateMapping(ctx, server.Id, &models.CreateMappingRequest{
			ScopeId:         seedMapping.ScopeId,
			ConnectionId:    conn.Id,
			DownstreamScope: seedMapping.DownstreamScope,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (s *SeedService) mappingExists(ctx context.Context, serverId, scopeId, connectionId string) (bool, error) {
	mappings, err := s.repo.ListMappings(ctx, serverId, scopeId)
	if err != nil {
		return false, err
	}
	for _, mapping := range mappings {
		if mapping.ConnectionId == connectionId {
			return true, nil
		}
	}
	return false, nil
}
