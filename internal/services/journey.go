package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/repository"
)

// ProviderBuilder builds downstream providers from connection rows.
// Implemented by ProviderFactory; faked in tests.
type ProviderBuilder interface {
	ForConnection(conn *models.Connection, downstreamScope string) (DownstreamProvider, error)
}

// StartJourneyParams carries a validated authorize request
type StartJourneyParams struct {
	ClientId            string
	Server              *models.Server
	Scope               []string
	RedirectUri         string
	State               string
	Resource            string
	CodeChallenge       string
	CodeChallengeMethod string
}

// JourneyService is the authorization journey state machine. It decides which
// downstream authorizations a request requires, advances per-connection
// sub-flows as consent lands, and guards the single-use MCP authorization
// code. Every journey mutation is a compare-and-set through the repository.
type JourneyService struct {
	journeys    repository.JourneyRepository
	registry    repository.RegistryRepository
	clients     repository.ClientRepository
	providers   ProviderBuilder
	cipher      *TokenCipher
	tokens      *TokenService
	authCodeTTL time.Duration
}

// NewJourneyService creates a new JourneyService instance
func NewJourneyService(
	journeys repository.JourneyRepository,
	registry repository.RegistryRepository,
	clients repository.ClientRepository,
	providers ProviderBuilder,
	cipher *TokenCipher,
	tokens *TokenService,
	authCodeTTL time.Duration,
) *JourneyService {
	return &JourneyService{
		journeys:    journeys,
		registry:    registry,
		clients:     clients,
		providers:   providers,
		cipher:      cipher,
		tokens:      tokens,
		authCodeTTL: authCodeTTL,
	}
}

// StartJourney validates the authorize request, computes the required
// downstream connections from the scope mappings and persists a new journey.
// It returns the consent descriptor for the external consent UI.
func (s *JourneyService) StartJourney(ctx context.Context, params *StartJourneyParams) (*models.ConsentDescriptor, error) {
	client, err := s.clients.GetClientById(ctx, params.ClientId)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, fmt.Errorf("%w: unknown client", ErrInvalidRequest)
		}
		return nil, err
	}

	if !client.HasRedirectUri(params.RedirectUri) {
		return nil, fmt.Errorf("%w: redirect_uri is not registered for this client", ErrInvalidRequest)
	}
	if params.CodeChallenge == "" {
		return nil, fmt.Errorf("%w: code_challenge is required", ErrInvalidRequest)
	}
	if params.CodeChallengeMethod != models.CodeChallengeMethodS256 {
		return nil, fmt.Errorf("%w: only S256 code_challenge_method is supported", ErrInvalidRequest)
	}
	if len(params.Scope) == 0 {
		return nil, fmt.Errorf("%w: scope is required", ErrInvalidScope)
	}

	// Resolve every requested scope against the registry before touching state
	scopes := make([]models.Scope, 0, len(params.Scope))
	for _, scopeId := range params.Scope {
		scope, err := s.registry.GetScope(ctx, params.Server.Id, scopeId)
		if err != nil {
			if errors.Is(err, repository.ErrScopeNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidScope, scopeId)
			}
			return nil, err
		}
		scopes = append(scopes, *scope)
	}

	// Fan out to the distinct set of required connections. A scope may map to
	// several connections; several scopes may share one connection, which must
	// still yield a single sub-flow with the merged downstream scope.
	type requirement struct {
		connection      *models.Connection
		downstreamScope []string
	}
	var order []string
	required := make(map[string]*requirement)
	for _, scope := range scopes {
		mappings, err := s.registry.ListMappings(ctx, params.Server.Id, scope.ScopeId)
		if err != nil {
			return nil, err
		}
		for _, mapping := range mappings {
			req, seen := required[mapping.ConnectionId]
			if !seen {
				conn, err := s.registry.GetConnectionById(ctx, mapping.ConnectionId)
				if err != nil {
					return nil, err
				}
				req = &requirement{connection: conn}
				required[mapping.ConnectionId] = req
				order = append(order, mapping.ConnectionId)
			}
			if !containsString(req.downstreamScope, mapping.DownstreamScope) {
				req.downstreamScope = append(req.downstreamScope, mapping.DownstreamScope)
			}
		}
	}

	now := time.Now().UTC()
	journey := &models.AuthorizationJourney{
		Id:          uuid.NewString(),
		ClientId:    client.ClientId,
		ServerId:    params.Server.Id,
		Resource:    params.Resource,
		RedirectUri: params.RedirectUri,
		State:       params.State,
		McpAuthorizationFlow: models.McpAuthorizationFlow{
			Status:        models.McpFlowStarted,
			Scope:         params.Scope,
			CodeChallenge: params.CodeChallenge,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, connectionId := range order {
		req := required[connectionId]
		journey.ConnectionAuthorizationFlows = append(journey.ConnectionAuthorizationFlows, models.ConnectionAuthorizationFlow{
			Id:              uuid.NewString(),
			ConnectionId:    connectionId,
			ConnectionName:  req.connection.FriendlyName,
			Status:          models.ConnectionFlowPending,
			DownstreamScope: strings.Join(req.downstreamScope, " "),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	if len(journey.ConnectionAuthorizationFlows) > 0 {
		journey.Status = models.JourneyConnectionsFlowStarted
	} else {
		journey.Status = models.JourneyMcpAuthFlowStarted
	}

	if err := s.journeys.CreateJourney(ctx, journey); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"journey_id":  journey.Id,
		"client_id":   client.ClientId,
		"server_id":   params.Server.Id,
		"scope":       strings.Join(params.Scope, " "),
		"connections": len(journey.ConnectionAuthorizationFlows),
	}).Info("Authorization journey started")

	return s.buildDescriptor(ctx, journey, client, params.Server)
}

// GetJourney loads a journey for the consent UI
func (s *JourneyService) GetJourney(ctx context.Context, journeyId string) (*models.AuthorizationJourney, error) {
	return s.journeys.GetJourneyById(ctx, journeyId)
}

// Describe rebuilds the consent descriptor for an existing journey
func (s *JourneyService) Describe(ctx context.Context, journeyId string) (*models.ConsentDescriptor, error) {
	journey, err := s.journeys.GetJourneyById(ctx, journeyId)
	if err != nil {
		return nil, err
	}

	client, err := s.clients.GetClientById(ctx, journey.ClientId)
	if err != nil {
		return nil, err
	}
	server, err := s.registry.GetServerById(ctx, journey.ServerId)
	if err != nil {
		return nil, err
	}
	return s.buildDescriptor(ctx, journey, client, server)
}

// Decide records the resource owner's consent decision. On denial the journey
// turns terminal immediately and no downstream provider is ever contacted. On
// approval the result redirects the user agent to the first pending
// connection's authorize URL, or straight back to the client with an issued
// code when no downstream authorization is required.
func (s *JourneyService) Decide(ctx context.Context, decision *models.ConsentDecision) (*models.ConsentResult, error) {
	journey, err := s.journeys.GetJourneyById(ctx, decision.FlowId)
	if err != nil {
		return nil, err
	}
	if journey.Status.Terminal() {
		return nil, fmt.Errorf("%w: journey %s is %s", ErrJourneyTerminal, journey.Id, journey.Status)
	}

	if !decision.Approved {
		journey.Status = models.JourneyDenied
		if err := s.journeys.UpdateJourney(ctx, journey); err != nil {
			return nil, err
		}
		logger.WithField("journey_id", journey.Id).Info("Consent denied by resource owner")
		return &models.ConsentResult{
			RedirectUri: s.clientErrorRedirect(journey, "access_denied", "the resource owner denied the request"),
			Status:      models.JourneyDenied,
		}, nil
	}

	journey.Subject = decision.Subject
	if journey.Subject == "" {
		journey.Subject = journey.ClientId
	}

	if pending := journey.PendingConnectionFlows(); len(pending) > 0 {
		redirect, err := s.downstreamAuthorizeURL(ctx, journey, &pending[0])
		if err != nil {
			return nil, err
		}
		if err := s.journeys.UpdateJourney(ctx, journey); err != nil {
			return nil, err
		}
		return &models.ConsentResult{
			RedirectUri: redirect,
			Status:      journey.Status,
		}, nil
	}

	// No downstream authorization required: issue the code right away
	if err := s.issueAuthorizationCode(journey); err != nil {
		return nil, err
	}
	if err := s.journeys.UpdateJourney(ctx, journey); err != nil {
		return nil, err
	}
	return &models.ConsentResult{
		RedirectUri: s.clientCodeRedirect(journey),
		Status:      journey.Status,
	}, nil
}

// HandleDownstreamCallback processes a redirect back from a downstream
// provider. The state parameter carries "<journeyId>.<flowId>". The result
// redirect points to the next pending connection, or back to the client with
// the issued code once every required connection is authorized. A provider
// error or denial fails the whole journey; no degraded-scope token is ever
// issued silently.
func (s *JourneyService) HandleDownstreamCallback(ctx context.Context, state, code, errCode, errDescription string) (*models.ConsentResult, error) {
	journeyId, flowId, ok := splitCallbackState(state)
	if !ok {
		return nil, fmt.Errorf("%w: malformed state parameter", ErrInvalidRequest)
	}

	journey, err := s.journeys.GetJourneyById(ctx, journeyId)
	if err != nil {
		return nil, err
	}
	if journey.Status.Terminal() {
		return nil, fmt.Errorf("%w: journey %s is %s", ErrJourneyTerminal, journey.Id, journey.Status)
	}

	flow := journey.ConnectionFlowById(flowId)
	if flow == nil {
		return nil, fmt.Errorf("%w: unknown connection flow", ErrInvalidRequest)
	}
	if flow.Status != models.ConnectionFlowPending {
		return nil, fmt.Errorf("%w: connection flow already settled", ErrInvalidRequest)
	}

	now := time.Now().UTC()

	if errCode != "" {
		return s.failJourney(ctx, journey, flow, fmt.Sprintf("%s: %s", errCode, errDescription))
	}

	conn, err := s.registry.GetConnectionById(ctx, flow.ConnectionId)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.ForConnection(conn, flow.DownstreamScope)
	if err != nil {
		return nil, err
	}

	token, err := provider.Exchange(ctx, code)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"journey_id":    journey.Id,
			"connection_id": flow.ConnectionId,
			"error":         err.Error(),
		}).Warn("Downstream code exchange failed")
		return s.failJourney(ctx, journey, flow, err.Error())
	}

	encryptedAccess, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, err
	}
	flow.DownstreamAccessToken = encryptedAccess
	if token.RefreshToken != "" {
		encryptedRefresh, err := s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return nil, err
		}
		flow.DownstreamRefreshToken = encryptedRefresh
	}
	flow.TokenExpiresAt = token.ExpiresAt
	flow.Status = models.ConnectionFlowAuthorized
	flow.UpdatedAt = now

	if pending := journey.PendingConnectionFlows(); len(pending) > 0 {
		redirect, err := s.downstreamAuthorizeURL(ctx, journey, &pending[0])
		if err != nil {
			return nil, err
		}
		if err := s.journeys.UpdateJourney(ctx, journey); err != nil {
			return nil, err
		}
		return &models.ConsentResult{RedirectUri: redirect, Status: journey.Status}, nil
	}

	if err := s.issueAuthorizationCode(journey); err != nil {
		return nil, err
	}
	if err := s.journeys.UpdateJourney(ctx, journey); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"journey_id": journey.Id,
		"client_id":  journey.ClientId,
	}).Info("All connection flows authorized, authorization code issued")

	return &models.ConsentResult{
		RedirectUri: s.clientCodeRedirect(journey),
		Status:      journey.Status,
	}, nil
}

// ExchangeCode redeems a single-use MCP authorization code for tokens.
// Reuse is a hard failure; a journey with pending connections reports
// ErrAuthorizationPending rather than blocking.
func (s *JourneyService) ExchangeCode(ctx context.Context, server *models.Server, version string, req *models.TokenRequest) (*models.TokenResponse, error) {
	if req.Code == "" || req.CodeVerifier == "" {
		return nil, fmt.Errorf("%w: code and code_verifier are required", ErrInvalidRequest)
	}

	journey, err := s.journeys.GetJourneyByAuthorizationCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrJourneyNotFound) {
			return nil, fmt.Errorf("%w: unknown authorization code", ErrInvalidGrant)
		}
		return nil, err
	}
	if journey.ServerId != server.Id {
		return nil, fmt.Errorf("%w: authorization code was issued for a different server", ErrInvalidGrant)
	}

	switch journey.Status {
	case models.JourneyDenied:
		return nil, fmt.Errorf("%w: the resource owner rejected the request", ErrConsentDenied)
	case models.JourneyFailed, models.JourneyExpired:
		return nil, fmt.Errorf("%w: journey is %s", ErrInvalidGrant, journey.Status)
	}

	if req.ClientId != "" && req.ClientId != journey.ClientId {
		return nil, fmt.Errorf("%w: client_id mismatch", ErrInvalidGrant)
	}
	if req.RedirectUri != "" && req.RedirectUri != journey.RedirectUri {
		return nil, fmt.Errorf("%w: redirect_uri mismatch", ErrInvalidGrant)
	}

	if !journey.AllConnectionsAuthorized() {
		return nil, fmt.Errorf("%w: %d connection flow(s) not yet authorized", ErrAuthorizationPending, len(journey.PendingConnectionFlows()))
	}

	mcpFlow := &journey.McpAuthorizationFlow
	if mcpFlow.AuthorizationCodeUsed {
		logger.WithField("journey_id", journey.Id).Warn("Authorization code replay detected")
		return nil, fmt.Errorf("%w: authorization code already used", ErrVerificationFailed)
	}
	if time.Now().UTC().After(mcpFlow.AuthorizationCodeExpiresAt) {
		return nil, fmt.Errorf("%w: authorization code expired", ErrVerificationFailed)
	}
	if !verifyPKCE(mcpFlow.CodeChallenge, req.CodeVerifier) {
		return nil, fmt.Errorf("%w: PKCE verification failed", ErrVerificationFailed)
	}

	mcpFlow.AuthorizationCodeUsed = true
	mcpFlow.Status = models.McpFlowAuthorizationCodeExchange
	journey.Status = models.JourneyAuthorizationCodeExchanged

	// The compare-and-set is what makes the code single-use under racing
	// exchange attempts: exactly one writer wins the version check.
	if err := s.journeys.UpdateJourney(ctx, journey); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: authorization code already used", ErrVerificationFailed)
		}
		return nil, err
	}

	params := MintParams{
		ClientId:         journey.ClientId,
		Subject:          journey.Subject,
		ServerIdentifier: server.ProvidedId,
		Version:          version,
		Resource:         journey.Resource,
		Scope:            mcpFlow.Scope,
	}
	accessToken, claims, err := s.tokens.Mint(params)
	if err != nil {
		return nil, err
	}
	refreshToken, _, err := s.tokens.MintRefresh(params)
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"journey_id": journey.Id,
		"client_id":  journey.ClientId,
		"jti":        claims.ID,
	}).Info("Authorization code exchanged, access token minted")

	return &models.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    models.TokenTypeBearer,
		ExpiresIn:    int64(s.tokens.AccessTokenTTL().Seconds()),
		RefreshToken: refreshToken,
		Scope:        claims.ScopeString(),
	}, nil
}

// RefreshGrant redeems a refresh token for a new access/refresh token pair.
// The requested scope may only narrow the originally granted one.
func (s *JourneyService) RefreshGrant(ctx context.Context, server *models.Server, version string, req *models.TokenRequest) (*models.TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}

	claims, err := s.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if req.ClientId != "" && req.ClientId != claims.ClientId {
		return nil, fmt.Errorf("%w: client_id mismatch", ErrInvalidGrant)
	}
	if claims.ServerIdentifier != server.ProvidedId {
		return nil, fmt.Errorf("%w: refresh token was issued for a different server", ErrInvalidGrant)
	}

	client, err := s.clients.GetClientById(ctx, claims.ClientId)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, fmt.Errorf("%w: client registration was revoked", ErrInvalidGrant)
		}
		return nil, err
	}
	if !client.HasGrantType(models.GrantTypeRefreshToken) {
		return nil, fmt.Errorf("%w: client did not register the refresh_token grant", ErrInvalidGrant)
	}

	scope := claims.Scope
	if req.Scope != "" {
		requested := strings.Fields(req.Scope)
		for _, scopeId := range requested {
			if !containsString(claims.Scope, scopeId) {
				return nil, fmt.Errorf("%w: scope %s exceeds the original grant", ErrInvalidScope, scopeId)
			}
		}
		scope = requested
	}

	params := MintParams{
		ClientId:         claims.ClientId,
		Subject:          claims.Subject,
		ServerIdentifier: server.ProvidedId,
		Version:          version,
		Resource:         claims.Resource,
		Scope:            scope,
	}
	accessToken, minted, err := s.tokens.Mint(params)
	if err != nil {
		return nil, err
	}
	refreshToken, _, err := s.tokens.MintRefresh(params)
	if err != nil {
		return nil, err
	}

	return &models.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    models.TokenTypeBearer,
		ExpiresIn:    int64(s.tokens.AccessTokenTTL().Seconds()),
		RefreshToken: refreshToken,
		Scope:        minted.ScopeString(),
	}, nil
}

// failJourney marks one connection flow failed and turns the journey terminal
func (s *JourneyService) failJourney(ctx context.Context, journey *models.AuthorizationJourney, flow *models.ConnectionAuthorizationFlow, reason string) (*models.ConsentResult, error) {
	flow.Status = models.ConnectionFlowFailed
	flow.FailureReason = reason
	flow.UpdatedAt = time.Now().UTC()
	journey.Status = models.JourneyFailed

	if err := s.journeys.UpdateJourney(ctx, journey); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"journey_id":    journey.Id,
		"connection_id": flow.ConnectionId,
		"reason":        reason,
	}).Warn("Journey failed on connection flow")

	return &models.ConsentResult{
		RedirectUri: s.clientErrorRedirect(journey, "access_denied", "downstream authorization failed"),
		Status:      models.JourneyFailed,
	}, nil
}

// issueAuthorizationCode attaches a fresh single-use code to the journey
func (s *JourneyService) issueAuthorizationCode(journey *models.AuthorizationJourney) error {
	code, err := GenerateOpaqueToken()
	if err != nil {
		return err
	}
	journey.McpAuthorizationFlow.AuthorizationCode = code
	journey.McpAuthorizationFlow.AuthorizationCodeExpiresAt = time.Now().UTC().Add(s.authCodeTTL)
	journey.McpAuthorizationFlow.AuthorizationCodeUsed = false
	journey.McpAuthorizationFlow.Status = models.McpFlowAuthorizationCodeIssued
	journey.Status = models.JourneyMcpAuthFlowStarted
	return nil
}

// downstreamAuthorizeURL builds the provider authorize redirect for one flow
func (s *JourneyService) downstreamAuthorizeURL(ctx context.Context, journey *models.AuthorizationJourney, flow *models.ConnectionAuthorizationFlow) (string, error) {
	conn, err := s.registry.GetConnectionById(ctx, flow.ConnectionId)
	if err != nil {
		return "", err
	}
	provider, err := s.providers.ForConnection(conn, flow.DownstreamScope)
	if err != nil {
		return "", err
	}
	return provider.AuthorizeURL(callbackState(journey.Id, flow.Id)), nil
}

// clientCodeRedirect builds the success redirect back to the MCP client
func (s *JourneyService) clientCodeRedirect(journey *models.AuthorizationJourney) string {
	values := url.Values{}
	values.Set("code", journey.McpAuthorizationFlow.AuthorizationCode)
	values.Set("state", journey.State)
	return appendQuery(journey.RedirectUri, values)
}

// clientErrorRedirect builds an OAuth error redirect back to the MCP client
func (s *JourneyService) clientErrorRedirect(journey *models.AuthorizationJourney, errCode, description string) string {
	values := url.Values{}
	values.Set("error", errCode)
	values.Set("error_description", description)
	values.Set("state", journey.State)
	return appendQuery(journey.RedirectUri, values)
}

// buildDescriptor assembles the presentable consent summary
func (s *JourneyService) buildDescriptor(ctx context.Context, journey *models.AuthorizationJourney, client *models.Client, server *models.Server) (*models.ConsentDescriptor, error) {
	descriptor := &models.ConsentDescriptor{
		FlowId:      journey.Id,
		ClientName:  client.ClientName,
		ServerName:  server.Name,
		RedirectUri: journey.RedirectUri,
	}

	for _, scopeId := range journey.McpAuthorizationFlow.Scope {
		scope, err := s.registry.GetScope(ctx, server.Id, scopeId)
		if err != nil {
			return nil, err
		}
		descriptor.Scopes = append(descriptor.Scopes, models.ConsentScope{
			ScopeId:     scope.ScopeId,
			Description: scope.Description,
		})
	}

	for _, flow := range journey.ConnectionAuthorizationFlows {
		descriptor.Connections = append(descriptor.Connections, models.ConsentConnection{
			FlowId:         flow.Id,
			ConnectionName: flow.ConnectionName,
		})
	}

	return descriptor, nil
}

// verifyPKCE checks base64url(sha256(verifier)) against the stored challenge
// in constant time
func verifyPKCE(challenge, verifier string) bool {
	digest := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(digest[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// callbackState encodes the journey and flow identity into the downstream
// state parameter
func callbackState(journeyId, flowId string) string {
	return journeyId + "." + flowId
}

// splitCallbackState reverses callbackState
func splitCallbackState(state string) (journeyId, flowId string, ok bool) {
	parts := strings.SplitN(state, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// appendQuery merges values into an existing URL's query string
func appendQuery(rawUrl string, values url.Values) string {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return rawUrl + "?" + values.Encode()
	}
	query := parsed.Query()
	for key, list := range values {
		for _, v := range list {
			query.Set(key, v)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// containsString reports whether list contains value
func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
