package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
)

const (
	// TokenUseRefresh marks refresh tokens so they can never pass as access tokens
	TokenUseRefresh = "refresh"

	rsaKeyBits = 2048
)

// BrokerClaims is the claim set of every token the broker signs
type BrokerClaims struct {
	jwt.RegisteredClaims
	ClientId         string   `json:"client_id"`
	Scope            []string `json:"scope"`
	ServerIdentifier string   `json:"server_identifier"`
	Resource         string   `json:"resource"`
	Version          string   `json:"version"`
	TokenUse         string   `json:"token_use,omitempty"`
}

// ScopeString renders the scope list space-delimited for OAuth responses
func (c *BrokerClaims) ScopeString() string {
	return strings.Join(c.Scope, " ")
}

// signingKey pairs an RSA key with its published kid
type signingKey struct {
	kid     string
	private *rsa.PrivateKey
}

// MintParams carries everything needed to mint an access token
type MintParams struct {
	ClientId         string
	Subject          string
	ServerIdentifier string
	Version          string
	Resource         string
	Scope            []string
}

// TokenService mints and verifies the broker's signed tokens and publishes
// the key set for local verification. It keeps one current signing key plus
// the retired keys of the rotation overlap window so in-flight tokens remain
// verifiable.
type TokenService struct {
	mu      sync.RWMutex
	current *signingKey
	retired []*signingKey

	issuerBase string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a TokenService. When signingKeyPEM is empty a fresh
// RSA key is generated, which is fine for single-instance deployments; shared
// deployments must pin the key via configuration.
func NewTokenService(issuerBase, signingKeyPEM string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	var private *rsa.PrivateKey
	if signingKeyPEM != "" {
		parsed, err := parseRSAPrivateKeyPEM(signingKeyPEM)
		if err != nil {
			return nil, err
		}
		private = parsed
	} else {
		generated, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		private = generated
		logger.Warn("No SIGNING_KEY_PEM configured, generated an ephemeral signing key")
	}

	return &TokenService{
		current: &signingKey{
			kid:     uuid.NewString(),
			private: private,
		},
		issuerBase: strings.TrimRight(issuerBase, "/"),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// Issuer builds the issuer URL for a server/version pair
func (s *TokenService) Issuer(serverIdentifier, version string) string {
	return fmt.Sprintf("%s/mcp/%s/%s", s.issuerBase, serverIdentifier, version)
}

// AccessTokenTTL returns the configured access token lifetime
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// Mint builds and signs an access token
func (s *TokenService) Mint(params MintParams) (string, *BrokerClaims, error) {
	return s.mint(params, s.accessTTL, "")
}

// MintRefresh builds and signs a refresh token for the same grant
func (s *TokenService) MintRefresh(params MintParams) (string, *BrokerClaims, error) {
	return s.mint(params, s.refreshTTL, TokenUseRefresh)
}

func (s *TokenService) mint(params MintParams, ttl time.Duration, tokenUse string) (string, *BrokerClaims, error) {
	s.mu.RLock()
	key := s.current
	s.mu.RUnlock()

	now := time.Now().UTC()
	claims := &BrokerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer(params.ServerIdentifier, params.Version),
			Subject:   params.Subject,
			Audience:  jwt.ClaimStrings{params.Resource},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		ClientId:         params.ClientId,
		Scope:            params.Scope,
		ServerIdentifier: params.ServerIdentifier,
		Resource:         params.Resource,
		Version:          params.Version,
		TokenUse:         tokenUse,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = key.kid

	signed, err := token.SignedString(key.private)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify validates the signature against the published key set and checks
// expiry with no grace window. Unknown or rotated-out key ids fail hard.
func (s *TokenService) Verify(tokenString string) (*BrokerClaims, error) {
	claims := &BrokerClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("missing kid in token header")
		}
		key := s.lookupKey(kid)
		if key == nil {
			return nil, fmt.Errorf("unknown signing key %q", kid)
		}
		return &key.private.PublicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and rejects access tokens passed in
// its place
func (s *TokenService) VerifyRefresh(tokenString string) (*BrokerClaims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenUse != TokenUseRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrVerificationFailed)
	}
	return claims, nil
}

// RotateKey generates a new current signing key and keeps the previous one
// verifiable for the overlap window
func (s *TokenService) RotateKey() error {
	generated, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}

	s.mu.Lock()
	s.retired = append(s.retired, s.current)
	s.current = &signingKey{
		kid:     uuid.NewString(),
		private: generated,
	}
	s.mu.Unlock()

	logger.Info("Signing key rotated, previous key retained for verification")
	return nil
}

// JWKS returns the public JSON Web Key Set covering the current key and the
// rotation overlap window
func (s *TokenService) JWKS() jose.JSONWebKeySet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]jose.JSONWebKey, 0, 1+len(s.retired))
	for _, key := range append([]*signingKey{s.current}, s.retired...) {
		keys = append(keys, jose.JSONWebKey{
			Key:       &key.private.PublicKey,
			KeyID:     key.kid,
			Use:       "sig",
			Algorithm: string(jose.RS256),
		})
	}
	return jose.JSONWebKeySet{Keys: keys}
}

// Introspect renders claims as an RFC 7662 response
func (s *TokenService) Introspect(tokenString string) models.IntrospectResponse {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return models.IntrospectResponse{Active: false}
	}

	resp := models.IntrospectResponse{
		Active:           true,
		TokenType:        models.TokenTypeBearer,
		ClientId:         claims.ClientId,
		Sub:              claims.Subject,
		Iss:              claims.Issuer,
		Jti:              claims.ID,
		Scope:            claims.ScopeString(),
		ServerIdentifier: claims.ServerIdentifier,
		Resource:         claims.Resource,
		Version:          claims.Version,
	}
	if len(claims.Audience) > 0 {
		resp.Aud = claims.Audience[0]
	}
	if claims.ExpiresAt != nil {
		resp.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		resp.Iat = claims.IssuedAt.Unix()
	}
	return resp
}

// lookupKey finds a key by kid among current and retired keys
func (s *TokenService) lookupKey(kid string) *signingKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current.kid == kid {
		return s.current
	}
	for _, key := range s.retired {
		if key.kid == kid {
			return key
		}
	}
	return nil
}

// parseRSAPrivateKeyPEM accepts PKCS#1 and PKCS#8 encoded RSA private keys
func parseRSAPrivateKeyPEM(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("failed to decode signing key PEM")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not an RSA key")
	}
	return rsaKey, nil
}

// GenerateOpaqueToken returns a URL-safe cryptographically random string used
// for authorization codes and state values
func GenerateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
