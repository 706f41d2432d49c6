package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imyashkale/authbroker/internal/models"
)

const testCipherKey = "0123456789abcdef0123456789abcdef"

type journeyFixture struct {
	registry  *fakeRegistryRepo
	clients   *fakeClientRepo
	journeys  *fakeJourneyRepo
	providers *fakeProviderBuilder
	cipher    *TokenCipher
	tokens    *TokenService
	service   *JourneyService

	server *models.Server
	client *models.Client
}

func newJourneyFixture(t *testing.T) *journeyFixture {
	t.Helper()

	cipher, err := NewTokenCipher(testCipherKey)
	require.NoError(t, err)

	tokens, err := NewTokenService("https://broker.test", "", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	fx := &journeyFixture{
		registry:  newFakeRegistryRepo(),
		clients:   newFakeClientRepo(),
		journeys:  newFakeJourneyRepo(),
		providers: newFakeProviderBuilder(),
		cipher:    cipher,
		tokens:    tokens,
	}
	fx.service = NewJourneyService(fx.journeys, fx.registry, fx.clients, fx.providers, cipher, tokens, 90*time.Second)

	fx.server = &models.Server{Id: uuid.NewString(), ProvidedId: "notes-server", Name: "Notes Server"}
	require.NoError(t, fx.registry.CreateServer(context.Background(), fx.server))

	fx.client = &models.Client{
		ClientId:     uuid.NewString(),
		ServerId:     fx.server.Id,
		ClientName:   "Test MCP Client",
		RedirectUris: []string{"https://client.test/cb"},
		GrantTypes:   []string{models.GrantTypeAuthorizationCode, models.GrantTypeRefreshToken},
	}
	require.NoError(t, fx.clients.CreateClient(context.Background(), fx.client))

	return fx
}

func (fx *journeyFixture) addScope(t *testing.T, scopeId string) *models.Scope {
	t.Helper()
	scope := &models.Scope{Id: uuid.NewString(), ServerId: fx.server.Id, ScopeId: scopeId, Description: scopeId}
	require.NoError(t, fx.registry.CreateScope(context.Background(), scope))
	return scope
}

func (fx *journeyFixture) addConnection(t *testing.T, providedId string) *models.Connection {
	t.Helper()
	conn := &models.Connection{
		Id:           uuid.NewString(),
		ProvidedId:   providedId,
		ServerId:     fx.server.Id,
		FriendlyName: providedId,
	}
	require.NoError(t, fx.registry.CreateConnection(context.Background(), conn))
	fx.providers.providers[conn.Id] = &fakeProvider{
		authorizeBase: "https://" + providedId + ".test/authorize",
		exchangeToken: &DownstreamToken{
			AccessToken:  providedId + "-access",
			RefreshToken: providedId + "-refresh",
			ExpiresAt:    time.Now().UTC().Add(time.Hour),
		},
	}
	return conn
}

func (fx *journeyFixture) addMapping(t *testing.T, scopeId, connectionId, downstreamScope string) {
	t.Helper()
	require.NoError(t, fx.registry.CreateMapping(context.Background(), &models.ScopeMapping{
		Id:              uuid.NewString(),
		ServerId:        fx.server.Id,
		ScopeId:         scopeId,
		ConnectionId:    connectionId,
		DownstreamScope: downstreamScope,
	}))
}

func pkcePair() (verifier, challenge string) {
	verifier = "test-verifier-0123456789-0123456789-0123456789"
	digest := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(digest[:])
	return verifier, challenge
}

func (fx *journeyFixture) startParams(scope []string, challenge string) *StartJourneyParams {
	return &StartJourneyParams{
		ClientId:            fx.client.ClientId,
		Server:              fx.server,
		Scope:               scope,
		RedirectUri:         "https://client.test/cb",
		State:               "client-state",
		Resource:            "https://mcp.test/notes-server",
		CodeChallenge:       challenge,
		CodeChallengeMethod: models.CodeChallengeMethodS256,
	}
}

func TestStartJourney_SingleConnection(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")
	conn := fx.addConnection(t, "github")
	fx.addMapping(t, "notes:read", conn.Id, "repo:read")

	_, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)

	assert.Equal(t, "Test MCP Client", descriptor.ClientName)
	assert.Equal(t, "Notes Server", descriptor.ServerName)
	require.Len(t, descriptor.Connections, 1)
	assert.Equal(t, "github", descriptor.Connections[0].ConnectionName)

	journey, err := fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	assert.Equal(t, models.JourneyConnectionsFlowStarted, journey.Status)
	assert.Equal(t, models.McpFlowStarted, journey.McpAuthorizationFlow.Status)
	require.Len(t, journey.ConnectionAuthorizationFlows, 1)
	assert.Equal(t, models.ConnectionFlowPending, journey.ConnectionAuthorizationFlows[0].Status)
	assert.Equal(t, "repo:read", journey.ConnectionAuthorizationFlows[0].DownstreamScope)
}

func TestStartJourney_SharedConnectionDeduplicated(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")
	fx.addScope(t, "notes:write")
	conn := fx.addConnection(t, "github")
	fx.addMapping(t, "notes:read", conn.Id, "repo:read")
	fx.addMapping(t, "notes:write", conn.Id, "repo:write")

	_, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read", "notes:write"}, challenge))
	require.NoError(t, err)

	journey, err := fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	require.Len(t, journey.ConnectionAuthorizationFlows, 1, "one connection must yield one sub-flow")

	downstream := journey.ConnectionAuthorizationFlows[0].DownstreamScope
	assert.Contains(t, strings.Fields(downstream), "repo:read")
	assert.Contains(t, strings.Fields(downstream), "repo:write")
}

func TestStartJourney_Validation(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")
	_, challenge := pkcePair()

	tests := []struct {
		name    string
		mutate  func(*StartJourneyParams)
		wantErr error
	}{
		{
			name:    "unknown client",
			mutate:  func(p *StartJourneyParams) { p.ClientId = "nope" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unregistered redirect uri",
			mutate:  func(p *StartJourneyParams) { p.RedirectUri = "https://evil.test/cb" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing code challenge",
			mutate:  func(p *StartJourneyParams) { p.CodeChallenge = "" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "plain challenge method",
			mutate:  func(p *StartJourneyParams) { p.CodeChallengeMethod = "plain" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unknown scope",
			mutate:  func(p *StartJourneyParams) { p.Scope = []string{"nope:read"} },
			wantErr: ErrInvalidScope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := fx.startParams([]string{"notes:read"}, challenge)
			tt.mutate(params)
			_, err := fx.service.StartJourney(context.Background(), params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecide_DenialIsTerminalWithoutDownstreamContact(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")
	conn := fx.addConnection(t, "github")
	fx.addMapping(t, "notes:read", conn.Id, "repo:read")

	_, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)

	result, err := fx.service.Decide(context.Background(), &models.ConsentDecision{
		FlowId:   descriptor.FlowId,
		Approved: false,
	})
	require.NoError(t, err)
	assert.Equal(t, models.JourneyDenied, result.Status)
	assert.Contains(t, result.RedirectUri, "error=access_denied")
	assert.Contains(t, result.RedirectUri, "state=client-state")

	// A denied journey refuses further decisions
	_, err = fx.service.Decide(context.Background(), &models.ConsentDecision{FlowId: descriptor.FlowId, Approved: true})
	assert.ErrorIs(t, err, ErrJourneyTerminal)
}

func TestJourney_FullHappyPath(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")
	conn := fx.addConnection(t, "github")
	fx.addMapping(t, "notes:read", conn.Id, "repo:read")

	verifier, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)

	// Approval redirects to the downstream authorize URL
	result, err := fx.service.Decide(context.Background(), &models.ConsentDecision{
		FlowId:   descriptor.FlowId,
		Approved: true,
		Subject:  "user-1",
	})
	require.NoError(t, err)
	assert.Contains(t, result.RedirectUri, "https://github.test/authorize")
	assert.Contains(t, result.RedirectUri, descriptor.FlowId)

	// The provider redirects back; all connections done, code issued
	journey, err := fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	state := journey.Id + "." + journey.ConnectionAuthorizationFlows[0].Id

	result, err = fx.service.HandleDownstreamCallback(context.Background(), state, "downstream-code", "", "")
	require.NoError(t, err)
	assert.Contains(t, result.RedirectUri, "https://client.test/cb")
	assert.Contains(t, result.RedirectUri, "code=")
	assert.Contains(t, result.RedirectUri, "state=client-state")
	assert.Equal(t, models.JourneyMcpAuthFlowStarted, result.Status)

	journey, err = fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionFlowAuthorized, journey.ConnectionAuthorizationFlows[0].Status)
	assert.Equal(t, models.McpFlowAuthorizationCodeIssued, journey.McpAuthorizationFlow.Status)
	require.NotEmpty(t, journey.McpAuthorizationFlow.AuthorizationCode)

	// The stored downstream token is encrypted at rest
	stored := journey.ConnectionAuthorizationFlows[0].DownstreamAccessToken
	assert.NotEqual(t, "github-access", stored)
	plain, err := fx.cipher.Decrypt(stored)
	require.NoError(t, err)
	assert.Equal(t, "github-access", plain)

	// Code exchange mints tokens
	resp, err := fx.service.ExchangeCode(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		GrantType:    models.GrantTypeAuthorizationCode,
		ClientId:     fx.client.ClientId,
		Code:         journey.McpAuthorizationFlow.AuthorizationCode,
		RedirectUri:  "https://client.test/cb",
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeBearer, resp.TokenType)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := fx.tokens.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "notes-server", claims.ServerIdentifier)
	assert.Equal(t, []string{"notes:read"}, claims.Scope)

	journey, err = fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	assert.Equal(t, models.JourneyAuthorizationCodeExchanged, journey.Status)

	// Single use: a second redemption is a hard failure
	_, err = fx.service.ExchangeCode(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		Code:         journey.McpAuthorizationFlow.AuthorizationCode,
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestJourney_TwoConnectionsChainedCallbacks(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")
	fx.addScope(t, "mail:send")
	github := fx.addConnection(t, "github")
	google := fx.addConnection(t, "google")
	fx.addMapping(t, "notes:read", github.Id, "repo:read")
	fx.addMapping(t, "mail:send", google.Id, "gmail.send")

	_, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read", "mail:send"}, challenge))
	require.NoError(t, err)

	_, err = fx.service.Decide(context.Background(), &models.ConsentDecision{FlowId: descriptor.FlowId, Approved: true, Subject: "user-1"})
	require.NoError(t, err)

	journey, err := fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	require.Len(t, journey.ConnectionAuthorizationFlows, 2)

	// First callback settles one flow and redirects to the next provider
	first := journey.ConnectionAuthorizationFlows[0]
	result, err := fx.service.HandleDownstreamCallback(context.Background(), journey.Id+"."+first.Id, "code-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.JourneyConnectionsFlowStarted, result.Status)
	assert.NotContains(t, result.RedirectUri, "https://client.test/cb")

	// Second callback completes the journey
	journey, err = fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	second := journey.PendingConnectionFlows()[0]
	result, err = fx.service.HandleDownstreamCallback(context.Background(), journey.Id+"."+second.Id, "code-2", "", "")
	require.NoError(t, err)
	assert.Contains(t, result.RedirectUri, "https://client.test/cb")
	assert.Contains(t, result.RedirectUri, "code=")
}

func TestJourney_NoConnectionsIssuesCodeImmediately(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")
	// No mappings: the scope requires no downstream authorization

	_, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)
	assert.Empty(t, descriptor.Connections)

	result, err := fx.service.Decide(context.Background(), &models.ConsentDecision{FlowId: descriptor.FlowId, Approved: true, Subject: "user-1"})
	require.NoError(t, err)
	assert.Contains(t, result.RedirectUri, "https://client.test/cb")
	assert.Contains(t, result.RedirectUri, "code=")
	assert.Equal(t, models.JourneyMcpAuthFlowStarted, result.Status)
}

func TestHandleDownstreamCallback_ProviderDenialFailsJourney(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")
	conn := fx.addConnection(t, "github")
	fx.addMapping(t, "notes:read", conn.Id, "repo:read")

	_, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)
	_, err = fx.service.Decide(context.Background(), &models.ConsentDecision{FlowId: descriptor.FlowId, Approved: true})
	require.NoError(t, err)

	journey, err := fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	state := journey.Id + "." + journey.ConnectionAuthorizationFlows[0].Id

	result, err := fx.service.HandleDownstreamCallback(context.Background(), state, "", "access_denied", "user said no")
	require.NoError(t, err)
	assert.Equal(t, models.JourneyFailed, result.Status)
	assert.Contains(t, result.RedirectUri, "error=access_denied")

	journey, err = fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionFlowFailed, journey.ConnectionAuthorizationFlows[0].Status)
	assert.Contains(t, journey.ConnectionAuthorizationFlows[0].FailureReason, "access_denied")
}

func TestHandleDownstreamCallback_ExchangeFailureFailsJourney(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")
	conn := fx.addConnection(t, "github")
	fx.addMapping(t, "notes:read", conn.Id, "repo:read")
	fx.providers.providers[conn.Id].exchangeErr = errors.New("token endpoint returned 500")

	_, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)
	_, err = fx.service.Decide(context.Background(), &models.ConsentDecision{FlowId: descriptor.FlowId, Approved: true})
	require.NoError(t, err)

	journey, err := fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)
	state := journey.Id + "." + journey.ConnectionAuthorizationFlows[0].Id

	result, err := fx.service.HandleDownstreamCallback(context.Background(), state, "bad-code", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.JourneyFailed, result.Status)
}

func TestHandleDownstreamCallback_MalformedState(t *testing.T) {
	fx := newJourneyFixture(t)
	_, err := fx.service.HandleDownstreamCallback(context.Background(), "garbage", "code", "", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestExchangeCode_PKCEMismatch(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")

	_, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)
	_, err = fx.service.Decide(context.Background(), &models.ConsentDecision{FlowId: descriptor.FlowId, Approved: true})
	require.NoError(t, err)

	journey, err := fx.journeys.GetJourneyById(context.Background(), descriptor.FlowId)
	require.NoError(t, err)

	_, err = fx.service.ExchangeCode(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		Code:         journey.McpAuthorizationFlow.AuthorizationCode,
		CodeVerifier: "wrong-verifier-wrong-verifier-wrong-verifier",
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestExchangeCode_ExpiredCode(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")

	verifier, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)
	_, err = fx.service.Decide(context.Background(), &models.ConsentDecision{FlowId: descriptor.FlowId, Approved: true})
	require.NoError(t, err)

	// Age the code past its window
	stored := fx.journeys.journeys[descriptor.FlowId]
	stored.McpAuthorizationFlow.AuthorizationCodeExpiresAt = time.Now().UTC().Add(-time.Minute)

	_, err = fx.service.ExchangeCode(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		Code:         stored.McpAuthorizationFlow.AuthorizationCode,
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestExchangeCode_PendingConnectionReportsAuthorizationPending(t *testing.T) {
	fx := newJourneyFixture(t)
	scope := fx.addScope(t, "notes:read")
	conn := fx.addConnection(t, "github")
	fx.addMapping(t, scope.ScopeId, conn.Id, "repo")

	verifier, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)
	_, err = fx.service.Decide(context.Background(), &models.ConsentDecision{FlowId: descriptor.FlowId, Approved: true})
	require.NoError(t, err)

	// Plant a code while the downstream flow is still pending; the exchange
	// must report pending rather than mint tokens
	stored := fx.journeys.journeys[descriptor.FlowId]
	require.Equal(t, models.ConnectionFlowPending, stored.ConnectionAuthorizationFlows[0].Status)
	stored.McpAuthorizationFlow.AuthorizationCode = "eager-code"
	stored.McpAuthorizationFlow.AuthorizationCodeExpiresAt = time.Now().UTC().Add(time.Minute)

	_, err = fx.service.ExchangeCode(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		Code:         "eager-code",
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, ErrAuthorizationPending)
	assert.NotEqual(t, models.JourneyAuthorizationCodeExchanged, fx.journeys.journeys[descriptor.FlowId].Status)
}

func TestExchangeCode_DeniedJourney(t *testing.T) {
	fx := newJourneyFixture(t)
	fx.addScope(t, "notes:read")

	verifier, challenge := pkcePair()
	descriptor, err := fx.service.StartJourney(context.Background(), fx.startParams([]string{"notes:read"}, challenge))
	require.NoError(t, err)
	_, err = fx.service.Decide(context.Background(), &models.ConsentDecision{FlowId: descriptor.FlowId, Approved: true})
	require.NoError(t, err)

	stored := fx.journeys.journeys[descriptor.FlowId]
	stored.Status = models.JourneyDenied

	_, err = fx.service.ExchangeCode(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		Code:         stored.McpAuthorizationFlow.AuthorizationCode,
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, ErrConsentDenied)
}

func TestExchangeCode_UnknownCode(t *testing.T) {
	fx := newJourneyFixture(t)
	_, err := fx.service.ExchangeCode(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		Code:         "never-issued",
		CodeVerifier: "whatever-verifier",
	})
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRefreshGrant_RoundTripAndScopeNarrowing(t *testing.T) {
	fx := newJourneyFixture(t)

	params := MintParams{
		ClientId:         fx.client.ClientId,
		Subject:          "user-1",
		ServerIdentifier: fx.server.ProvidedId,
		Version:          "1.0.0",
		Scope:            []string{"notes:read", "notes:write"},
	}
	refreshToken, _, err := fx.tokens.MintRefresh(params)
	require.NoError(t, err)

	resp, err := fx.service.RefreshGrant(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		GrantType:    models.GrantTypeRefreshToken,
		ClientId:     fx.client.ClientId,
		RefreshToken: refreshToken,
		Scope:        "notes:read",
	})
	require.NoError(t, err)
	assert.Equal(t, "notes:read", resp.Scope)

	// Widening beyond the original grant is rejected
	_, err = fx.service.RefreshGrant(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		RefreshToken: refreshToken,
		Scope:        "notes:read admin:all",
	})
	assert.ErrorIs(t, err, ErrInvalidScope)

	// An access token is not a refresh token
	accessToken, _, err := fx.tokens.Mint(params)
	require.NoError(t, err)
	_, err = fx.service.RefreshGrant(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		RefreshToken: accessToken,
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestRefreshGrant_RequiresRegisteredGrantType(t *testing.T) {
	fx := newJourneyFixture(t)

	codeOnly := &models.Client{
		ClientId:     uuid.NewString(),
		ServerId:     fx.server.Id,
		ClientName:   "Code Only Client",
		RedirectUris: []string{"https://client.test/cb"},
		GrantTypes:   []string{models.GrantTypeAuthorizationCode},
	}
	require.NoError(t, fx.clients.CreateClient(context.Background(), codeOnly))

	refreshToken, _, err := fx.tokens.MintRefresh(MintParams{
		ClientId:         codeOnly.ClientId,
		Subject:          "user-1",
		ServerIdentifier: fx.server.ProvidedId,
		Version:          "1.0.0",
		Scope:            []string{"notes:read"},
	})
	require.NoError(t, err)

	_, err = fx.service.RefreshGrant(context.Background(), fx.server, "1.0.0", &models.TokenRequest{
		GrantType:    models.GrantTypeRefreshToken,
		RefreshToken: refreshToken,
	})
	assert.ErrorIs(t, err, ErrInvalidGrant)
}
