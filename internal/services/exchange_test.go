package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imyashkale/authbroker/internal/models"
)

type exchangeFixture struct {
	*journeyFixture
	exchange *TokenExchangeService
	conn     *models.Connection
	journey  *models.AuthorizationJourney
}

// newExchangeFixture builds a completed journey for subject "user-1" with one
// authorized connection flow holding encrypted downstream tokens
func newExchangeFixture(t *testing.T, tokenExpiry time.Time, withRefresh bool) *exchangeFixture {
	t.Helper()

	base := newJourneyFixture(t)
	conn := base.addConnection(t, "github")

	encryptedAccess, err := base.cipher.Encrypt("downstream-access")
	require.NoError(t, err)
	encryptedRefresh := ""
	if withRefresh {
		encryptedRefresh, err = base.cipher.Encrypt("downstream-refresh")
		require.NoError(t, err)
	}

	now := time.Now().UTC()
	journey := &models.AuthorizationJourney{
		Id:          uuid.NewString(),
		ClientId:    base.client.ClientId,
		ServerId:    base.server.Id,
		Subject:     "user-1",
		RedirectUri: "https://client.test/cb",
		Status:      models.JourneyAuthorizationCodeExchanged,
		McpAuthorizationFlow: models.McpAuthorizationFlow{
			Status: models.McpFlowAuthorizationCodeExchange,
			Scope:  []string{"notes:read"},
		},
		ConnectionAuthorizationFlows: []models.ConnectionAuthorizationFlow{
			{
				Id:                     uuid.NewString(),
				ConnectionId:           conn.Id,
				ConnectionName:         conn.FriendlyName,
				Status:                 models.ConnectionFlowAuthorized,
				DownstreamScope:        "repo:read",
				DownstreamAccessToken:  encryptedAccess,
				DownstreamRefreshToken: encryptedRefresh,
				TokenExpiresAt:         tokenExpiry,
				UpdatedAt:              now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, base.journeys.CreateJourney(context.Background(), journey))

	return &exchangeFixture{
		journeyFixture: base,
		exchange:       NewTokenExchangeService(base.journeys, base.registry, base.providers, base.cipher, base.tokens),
		conn:           conn,
		journey:        journey,
	}
}

func (fx *exchangeFixture) subjectToken(t *testing.T) string {
	t.Helper()
	tokenString, _, err := fx.tokens.Mint(MintParams{
		ClientId:         fx.client.ClientId,
		Subject:          "user-1",
		ServerIdentifier: fx.server.ProvidedId,
		Version:          "1.0.0",
		Scope:            []string{"notes:read"},
	})
	require.NoError(t, err)
	return tokenString
}

func (fx *exchangeFixture) request(subjectToken string) *models.TokenRequest {
	return &models.TokenRequest{
		GrantType:        models.GrantTypeTokenExchange,
		SubjectToken:     subjectToken,
		SubjectTokenType: models.TokenTypeAccessToken,
		Resource:         "github",
	}
}

func TestExchange_ReturnsLiveDownstreamToken(t *testing.T) {
	fx := newExchangeFixture(t, time.Now().UTC().Add(time.Hour), true)

	resp, err := fx.exchange.Exchange(context.Background(), fx.server, fx.request(fx.subjectToken(t)))
	require.NoError(t, err)

	assert.Equal(t, "downstream-access", resp.AccessToken)
	assert.Equal(t, models.TokenTypeAccessToken, resp.IssuedTokenType)
	assert.Equal(t, models.TokenTypeBearer, resp.TokenType)
	assert.Equal(t, "repo:read", resp.Scope)
	assert.Greater(t, resp.ExpiresIn, int64(0))
}

func TestExchange_RequestValidation(t *testing.T) {
	fx := newExchangeFixture(t, time.Now().UTC().Add(time.Hour), true)
	subject := fx.subjectToken(t)

	tests := []struct {
		name    string
		mutate  func(*models.TokenRequest)
		wantErr error
	}{
		{
			name:    "missing subject token",
			mutate:  func(r *models.TokenRequest) { r.SubjectToken = "" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "wrong subject token type",
			mutate:  func(r *models.TokenRequest) { r.SubjectTokenType = "urn:ietf:params:oauth:token-type:saml2" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing resource",
			mutate:  func(r *models.TokenRequest) { r.Resource = "" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unknown resource",
			mutate:  func(r *models.TokenRequest) { r.Resource = "gitlab" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "garbage subject token",
			mutate:  func(r *models.TokenRequest) { r.SubjectToken = "not.a.jwt" },
			wantErr: ErrVerificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := fx.request(subject)
			tt.mutate(req)
			_, err := fx.exchange.Exchange(context.Background(), fx.server, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExchange_RejectsRefreshTokenAsSubject(t *testing.T) {
	fx := newExchangeFixture(t, time.Now().UTC().Add(time.Hour), true)

	refresh, _, err := fx.tokens.MintRefresh(MintParams{
		ClientId:         fx.client.ClientId,
		Subject:          "user-1",
		ServerIdentifier: fx.server.ProvidedId,
		Version:          "1.0.0",
	})
	require.NoError(t, err)

	_, err = fx.exchange.Exchange(context.Background(), fx.server, fx.request(refresh))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestExchange_NoAuthorizedFlowForSubject(t *testing.T) {
	fx := newExchangeFixture(t, time.Now().UTC().Add(time.Hour), true)

	// A different subject never authorized this connection
	stranger, _, err := fx.tokens.Mint(MintParams{
		ClientId:         fx.client.ClientId,
		Subject:          "user-2",
		ServerIdentifier: fx.server.ProvidedId,
		Version:          "1.0.0",
	})
	require.NoError(t, err)

	_, err = fx.exchange.Exchange(context.Background(), fx.server, fx.request(stranger))
	assert.ErrorIs(t, err, ErrDownstreamAuthRequired)
}

func TestExchange_TransparentRefresh(t *testing.T) {
	fx := newExchangeFixture(t, time.Now().UTC().Add(-time.Minute), true)

	provider := fx.providers.providers[fx.conn.Id]
	provider.refreshToken = &DownstreamToken{
		AccessToken:  "rotated-access",
		RefreshToken: "rotated-refresh",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}

	resp, err := fx.exchange.Exchange(context.Background(), fx.server, fx.request(fx.subjectToken(t)))
	require.NoError(t, err)
	assert.Equal(t, "rotated-access", resp.AccessToken)
	assert.Equal(t, 1, provider.refreshCalls)

	// The rotated tokens are persisted encrypted
	journey, err := fx.journeys.GetJourneyById(context.Background(), fx.journey.Id)
	require.NoError(t, err)
	flow := journey.ConnectionAuthorizationFlows[0]
	plain, err := fx.cipher.Decrypt(flow.DownstreamAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "rotated-access", plain)
}

func TestExchange_ExpiredWithoutRefreshToken(t *testing.T) {
	fx := newExchangeFixture(t, time.Now().UTC().Add(-time.Minute), false)

	_, err := fx.exchange.Exchange(context.Background(), fx.server, fx.request(fx.subjectToken(t)))
	assert.ErrorIs(t, err, ErrDownstreamAuthRequired)
}

func TestExchange_RefreshRejectedByProvider(t *testing.T) {
	fx := newExchangeFixture(t, time.Now().UTC().Add(-time.Minute), true)
	fx.providers.providers[fx.conn.Id].refreshErr = errors.New("invalid_grant")

	_, err := fx.exchange.Exchange(context.Background(), fx.server, fx.request(fx.subjectToken(t)))
	assert.ErrorIs(t, err, ErrDownstreamAuthRequired)
}
