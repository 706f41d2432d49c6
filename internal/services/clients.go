package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/repository"
)

// ClientService implements RFC 7591 dynamic client registration for MCP
// clients. MCP clients are public: PKCE only, no client secret ever issued.
type ClientService struct {
	repo repository.ClientRepository
}

// NewClientService creates a new ClientService instance
func NewClientService(repo repository.ClientRepository) *ClientService {
	return &ClientService{
		repo: repo,
	}
}

// Register validates client metadata and issues a client_id.
func (s *ClientService) Register(ctx context.Context, serverId string, req *models.RegisterClientRequest) (*models.Client, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	// Name collisions within a server are rejected so operators can tell
	// clients apart on the consent screen
	if _, err := s.repo.GetClientByName(ctx, serverId, req.ClientName); err == nil {
		return nil, repository.ErrClientAlreadyExists
	} else if !errors.Is(err, repository.ErrClientNotFound) {
		return nil, err
	}

	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{models.ResponseTypeCode}
	}

	client := &models.Client{
		ClientId:                uuid.NewString(),
		ServerId:                serverId,
		ClientName:              req.ClientName,
		RedirectUris:            req.RedirectUris,
		GrantTypes:              req.GrantTypes,
		ResponseTypes:           responseTypes,
		TokenEndpointAuthMethod: models.TokenEndpointAuthNone,
		Scope:                   req.Scope,
		Contacts:                req.Contacts,
		CodeChallengeMethod:     models.CodeChallengeMethodS256,
		ClientUri:               req.ClientUri,
		LogoUri:                 req.LogoUri,
		IssuedAt:                time.Now().UTC(),
	}

	if err := s.repo.CreateClient(ctx, client); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"client_id":   client.ClientId,
		"client_name": client.ClientName,
		"server_id":   serverId,
	}).Info("OAuth client registered")
	return client, nil
}

// Get returns a registered client. Unknown and malformed ids are reported
// identically so callers cannot enumerate the registry.
func (s *ClientService) Get(ctx context.Context, clientId string) (*models.Client, error) {
	if clientId == "" {
		return nil, repository.ErrClientNotFound
	}
	return s.repo.GetClientById(ctx, clientId)
}

// List returns all registered clients for administrative use
func (s *ClientService) List(ctx context.Context) ([]models.Client, error) {
	return s.repo.ListClients(ctx)
}

// Revoke removes a registered client
func (s *ClientService) Revoke(ctx context.Context, clientId string) error {
	if _, err := s.repo.GetClientById(ctx, clientId); err != nil {
		return err
	}
	return s.repo.DeleteClient(ctx, clientId)
}

// validateRegistration applies the MCP registration constraints
func validateRegistration(req *models.RegisterClientRequest) error {
	if len(req.RedirectUris) == 0 {
		return fmt.Errorf("%w: redirect_uris is required", ErrInvalidRequest)
	}
	for _, raw := range req.RedirectUris {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" {
			return fmt.Errorf("%w: invalid redirect_uri %q", ErrInvalidRequest, raw)
		}
	}

	hasAuthCode := false
	for _, g := range req.GrantTypes {
		switch g {
		case models.GrantTypeAuthorizationCode:
			hasAuthCode = true
		case models.GrantTypeRefreshToken, models.GrantTypeTokenExchange:
			// Allowed alongside authorization_code
		default:
			return fmt.Errorf("%w: unsupported grant_type %q", ErrInvalidRequest, g)
		}
	}
	if !hasAuthCode {
		return fmt.Errorf("%w: grant_types must include authorization_code", ErrInvalidRequest)
	}

	if req.TokenEndpointAuthMethod != "" && req.TokenEndpointAuthMethod != models.TokenEndpointAuthNone {
		return fmt.Errorf("%w: MCP clients must use token_endpoint_auth_method \"none\"", ErrInvalidRequest)
	}

	if req.CodeChallengeMethod != "" && req.CodeChallengeMethod != models.CodeChallengeMethodS256 {
		return fmt.Errorf("%w: only S256 code_challenge_method is supported", ErrInvalidRequest)
	}

	for _, rt := range req.ResponseTypes {
		if rt != models.ResponseTypeCode {
			return fmt.Errorf("%w: unsupported response_type %q", ErrInvalidRequest, rt)
		}
	}

	return nil
}
