package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/repository"
)

// TokenExchangeService turns a broker access token into a downstream provider
// token for one connection. The MCP server calls this when a tool invocation
// needs to reach a downstream API on the resource owner's behalf. The broker
// transparently refreshes expired downstream tokens when the provider gave us
// a refresh token; otherwise the caller is told to send the user back through
// authorization.
type TokenExchangeService struct {
	journeys  repository.JourneyRepository
	registry  repository.RegistryRepository
	providers ProviderBuilder
	cipher    *TokenCipher
	tokens    *TokenService
}

// NewTokenExchangeService creates a new TokenExchangeService instance
func NewTokenExchangeService(
	journeys repository.JourneyRepository,
	registry repository.RegistryRepository,
	providers ProviderBuilder,
	cipher *TokenCipher,
	tokens *TokenService,
) *TokenExchangeService {
	return &TokenExchangeService{
		journeys:  journeys,
		registry:  registry,
		providers: providers,
		cipher:    cipher,
		tokens:    tokens,
	}
}

// Exchange implements the RFC 8693 grant. The subject token must be a valid
// broker access token; the resource parameter names the target connection by
// its provided identifier.
func (s *TokenExchangeService) Exchange(ctx context.Context, server *models.Server, req *models.TokenRequest) (*models.TokenExchangeResponse, error) {
	if req.SubjectToken == "" {
		return nil, fmt.Errorf("%w: subject_token is required", ErrInvalidRequest)
	}
	if req.SubjectTokenType != "" && req.SubjectTokenType != models.TokenTypeAccessToken {
		return nil, fmt.Errorf("%w: unsupported subject_token_type %s", ErrInvalidRequest, req.SubjectTokenType)
	}
	if req.Resource == "" {
		return nil, fmt.Errorf("%w: resource is required", ErrInvalidRequest)
	}

	claims, err := s.tokens.Verify(req.SubjectToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenUse == TokenUseRefresh {
		return nil, fmt.Errorf("%w: refresh tokens cannot be exchanged", ErrInvalidRequest)
	}
	if claims.ServerIdentifier != server.ProvidedId {
		return nil, fmt.Errorf("%w: subject token was issued for a different server", ErrInvalidRequest)
	}

	conn, err := s.registry.GetConnectionByProvidedId(ctx, server.Id, req.Resource)
	if err != nil {
		if errors.Is(err, repository.ErrConnectionNotFound) {
			return nil, fmt.Errorf("%w: unknown target resource %s", ErrInvalidRequest, req.Resource)
		}
		return nil, err
	}

	journey, flow, err := s.findAuthorizedFlow(ctx, server.Id, claims.Subject, conn.Id)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.cipher.Decrypt(flow.DownstreamAccessToken)
	if err != nil {
		return nil, err
	}

	expiresAt := flow.TokenExpiresAt
	if expiresAt.IsZero() || time.Now().UTC().Before(expiresAt) {
		return exchangeResponse(accessToken, expiresAt, flow.DownstreamScope), nil
	}

	// Expired. Refresh transparently when we can, otherwise hand the problem
	// back to the MCP server as a re-authorization signal.
	if flow.DownstreamRefreshToken == "" {
		return nil, fmt.Errorf("%w: downstream token for %s expired with no refresh token", ErrDownstreamAuthRequired, conn.FriendlyName)
	}

	refreshToken, err := s.cipher.Decrypt(flow.DownstreamRefreshToken)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.ForConnection(conn, flow.DownstreamScope)
	if err != nil {
		return nil, err
	}
	refreshed, err := provider.Refresh(ctx, refreshToken)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"journey_id":    journey.Id,
			"connection_id": conn.Id,
			"error":         err.Error(),
		}).Warn("Downstream token refresh failed")
		return nil, fmt.Errorf("%w: downstream refresh for %s was rejected", ErrDownstreamAuthRequired, conn.FriendlyName)
	}

	if err := s.persistRefreshedToken(ctx, journey, flow.Id, refreshed); err != nil {
		// The refreshed token is still good even if persisting lost a race
		logger.WithField("journey_id", journey.Id).Warnf("Failed to persist refreshed downstream token: %v", err)
	}

	logger.WithFields(map[string]interface{}{
		"journey_id":    journey.Id,
		"connection_id": conn.Id,
		"subject":       claims.Subject,
	}).Info("Downstream token refreshed during exchange")

	return exchangeResponse(refreshed.AccessToken, refreshed.ExpiresAt, flow.DownstreamScope), nil
}

// findAuthorizedFlow locates the subject's most recent authorized sub-flow
// for the given connection
func (s *TokenExchangeService) findAuthorizedFlow(ctx context.Context, serverId, subject, connectionId string) (*models.AuthorizationJourney, *models.ConnectionAuthorizationFlow, error) {
	journeys, err := s.journeys.ListJourneysBySubject(ctx, serverId, subject)
	if err != nil {
		return nil, nil, err
	}

	var bestJourney *models.AuthorizationJourney
	var bestFlow *models.ConnectionAuthorizationFlow
	for i := range journeys {
		journey := &journeys[i]
		flow := journey.ConnectionFlowByConnectionId(connectionId)
		if flow == nil || flow.Status != models.ConnectionFlowAuthorized {
			continue
		}
		if bestFlow == nil || flow.UpdatedAt.After(bestFlow.UpdatedAt) {
			bestJourney = journey
			bestFlow = flow
		}
	}

	if bestFlow == nil {
		return nil, nil, fmt.Errorf("%w: no authorized grant for this connection", ErrDownstreamAuthRequired)
	}
	return bestJourney, bestFlow, nil
}

// persistRefreshedToken stores a rotated downstream token back on the journey
func (s *TokenExchangeService) persistRefreshedToken(ctx context.Context, journey *models.AuthorizationJourney, flowId string, token *DownstreamToken) error {
	flow := journey.ConnectionFlowById(flowId)
	if flow == nil {
		return fmt.Errorf("connection flow %s disappeared from journey %s", flowId, journey.Id)
	}

	encryptedAccess, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}
	flow.DownstreamAccessToken = encryptedAccess
	if token.RefreshToken != "" {
		encryptedRefresh, err := s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return err
		}
		flow.DownstreamRefreshToken = encryptedRefresh
	}
	flow.TokenExpiresAt = token.ExpiresAt
	flow.UpdatedAt = time.Now().UTC()

	return s.journeys.UpdateJourney(ctx, journey)
}

// exchangeResponse shapes the RFC 8693 success body
func exchangeResponse(accessToken string, expiresAt time.Time, scope string) *models.TokenExchangeResponse {
	var expiresIn int64
	if !expiresAt.IsZero() {
		if remaining := time.Until(expiresAt); remaining > 0 {
			expiresIn = int64(remaining.Seconds())
		}
	}
	return &models.TokenExchangeResponse{
		AccessToken:     accessToken,
		IssuedTokenType: models.TokenTypeAccessToken,
		TokenType:       models.TokenTypeBearer,
		ExpiresIn:       expiresIn,
		Scope:           scope,
	}
}
