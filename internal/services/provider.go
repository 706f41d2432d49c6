package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
)

// DownstreamToken is the provider-neutral result of a downstream code
// exchange or refresh
type DownstreamToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// DownstreamProvider is the capability set the journey engine needs from a
// downstream OAuth provider. One implementation per provider family, selected
// by connection configuration.
type DownstreamProvider interface {
	// AuthorizeURL builds the provider authorize redirect carrying state
	AuthorizeURL(state string) string
	// Exchange redeems a downstream authorization code at the token endpoint
	Exchange(ctx context.Context, code string) (*DownstreamToken, error)
	// Refresh obtains a fresh access token from a stored refresh token
	Refresh(ctx context.Context, refreshToken string) (*DownstreamToken, error)
}

// ProviderFactory builds DownstreamProvider instances from connection rows
type ProviderFactory struct {
	cipher      *TokenCipher
	callbackURL string
	httpClient  *http.Client
}

// NewProviderFactory creates a ProviderFactory. The callback URL is the
// broker's downstream redirect endpoint registered at every provider.
func NewProviderFactory(cipher *TokenCipher, callbackURL string) *ProviderFactory {
	return &ProviderFactory{
		cipher:      cipher,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ForConnection builds the provider for one connection, decrypting its stored
// client secret
func (f *ProviderFactory) ForConnection(conn *models.Connection, downstreamScope string) (DownstreamProvider, error) {
	secret, err := f.cipher.Decrypt(conn.ClientSecret)
	if err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     conn.ClientId,
		ClientSecret: secret,
		RedirectURL:  f.callbackURL,
		Scopes:       strings.Fields(downstreamScope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  conn.AuthorizeUrl,
			TokenURL: conn.TokenUrl,
		},
	}

	return &codeFlowProvider{
		cfg:        cfg,
		httpClient: f.httpClient,
		name:       conn.FriendlyName,
	}, nil
}

// codeFlowProvider is the standard authorization-code provider family. It
// covers every provider that follows RFC 6749 without extra token parameters.
type codeFlowProvider struct {
	cfg        *oauth2.Config
	httpClient *http.Client
	name       string
}

func (p *codeFlowProvider) AuthorizeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *codeFlowProvider) Exchange(ctx context.Context, code string) (*DownstreamToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, p.wrapUpstreamError("exchange", err)
	}
	return fromOAuth2Token(token), nil
}

func (p *codeFlowProvider) Refresh(ctx context.Context, refreshToken string) (*DownstreamToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, p.wrapUpstreamError("refresh", err)
	}
	return fromOAuth2Token(token), nil
}

// wrapUpstreamError distinguishes provider protocol rejections (terminal,
// invalid_grant class) from transport failures (retryable)
func (p *codeFlowProvider) wrapUpstreamError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		logger.WithFields(map[string]interface{}{
			"provider":    p.name,
			"operation":   op,
			"status_code": retrieveErr.Response.StatusCode,
		}).Warn("Downstream provider rejected request")
		return fmt.Errorf("%w: provider %s rejected %s: %v", ErrUpstreamFailure, p.name, op, err)
	}

	logger.WithFields(map[string]interface{}{
		"provider":  p.name,
		"operation": op,
		"error":     err.Error(),
	}).Error("Downstream provider unreachable")
	return fmt.Errorf("%w: provider %s unreachable during %s: %v", ErrUpstreamFailure, p.name, op, err)
}

// fromOAuth2Token normalizes the library token shape
func fromOAuth2Token(token *oauth2.Token) *DownstreamToken {
	return &DownstreamToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
}
