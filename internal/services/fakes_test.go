package services

import (
	"context"
	"fmt"
	"time"

	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/repository"
)

// In-memory repository fakes shared by the service tests. They reproduce the
// DynamoDB layer's sentinel errors and the journey compare-and-set semantics.

type fakeRegistryRepo struct {
	servers     map[string]*models.Server
	scopes      map[string]*models.Scope
	connections map[string]*models.Connection
	mappings    map[string]*models.ScopeMapping
}

func newFakeRegistryRepo() *fakeRegistryRepo {
	return &fakeRegistryRepo{
		servers:     make(map[string]*models.Server),
		scopes:      make(map[string]*models.Scope),
		connections: make(map[string]*models.Connection),
		mappings:    make(map[string]*models.ScopeMapping),
	}
}

func (f *fakeRegistryRepo) CreateServer(_ context.Context, server *models.Server) error {
	for _, existing := range f.servers {
		if existing.ProvidedId == server.ProvidedId {
			return repository.ErrServerAlreadyExists
		}
	}
	copied := *server
	f.servers[server.Id] = &copied
	return nil
}

func (f *fakeRegistryRepo) GetServerById(_ context.Context, id string) (*models.Server, error) {
	if server, ok := f.servers[id]; ok {
		copied := *server
		return &copied, nil
	}
	return nil, repository.ErrServerNotFound
}

func (f *fakeRegistryRepo) GetServerByProvidedId(_ context.Context, providedId string) (*models.Server, error) {
	for _, server := range f.servers {
		if server.ProvidedId == providedId {
			copied := *server
			return &copied, nil
		}
	}
	return nil, repository.ErrServerNotFound
}

func (f *fakeRegistryRepo) ListServers(_ context.Context) ([]models.Server, error) {
	var out []models.Server
	for _, server := range f.servers {
		out = append(out, *server)
	}
	return out, nil
}

func (f *fakeRegistryRepo) CreateScope(_ context.Context, scope *models.Scope) error {
	for _, existing := range f.scopes {
		if existing.ServerId == scope.ServerId && existing.ScopeId == scope.ScopeId {
			return repository.ErrScopeAlreadyExists
		}
	}
	copied := *scope
	f.scopes[scope.Id] = &copied
	return nil
}

func (f *fakeRegistryRepo) GetScope(_ context.Context, serverId, scopeId string) (*models.Scope, error) {
	for _, scope := range f.scopes {
		if scope.ServerId == serverId && scope.ScopeId == scopeId {
			copied := *scope
			return &copied, nil
		}
	}
	return nil, repository.ErrScopeNotFound
}

func (f *fakeRegistryRepo) GetScopeById(_ context.Context, id string) (*models.Scope, error) {
	if scope, ok := f.scopes[id]; ok {
		copied := *scope
		return &copied, nil
	}
	return nil, repository.ErrScopeNotFound
}

func (f *fakeRegistryRepo) ListScopes(_ context.Context, serverId string) ([]models.Scope, error) {
	var out []models.Scope
	for _, scope := range f.scopes {
		if scope.ServerId == serverId {
			out = append(out, *scope)
		}
	}
	return out, nil
}

func (f *fakeRegistryRepo) DeleteScope(_ context.Context, id string) error {
	if _, ok := f.scopes[id]; !ok {
		return repository.ErrScopeNotFound
	}
	delete(f.scopes, id)
	return nil
}

func (f *fakeRegistryRepo) CreateConnection(_ context.Context, conn *models.Connection) error {
	for _, existing := range f.connections {
		if existing.ServerId == conn.ServerId && existing.ProvidedId == conn.ProvidedId {
			return repository.ErrConnectionExists
		}
	}
	copied := *conn
	f.connections[conn.Id] = &copied
	return nil
}

func (f *fakeRegistryRepo) GetConnectionById(_ context.Context, id string) (*models.Connection, error) {
	if conn, ok := f.connections[id]; ok {
		copied := *conn
		return &copied, nil
	}
	return nil, repository.ErrConnectionNotFound
}

func (f *fakeRegistryRepo) GetConnectionByProvidedId(_ context.Context, serverId, providedId string) (*models.Connection, error) {
	for _, conn := range f.connections {
		if conn.ServerId == serverId && conn.ProvidedId == providedId {
			copied := *conn
			return &copied, nil
		}
	}
	return nil, repository.ErrConnectionNotFound
}

func (f *fakeRegistryRepo) ListConnections(_ context.Context, serverId string) ([]models.Connection, error) {
	var out []models.Connection
	for _, conn := range f.connections {
		if conn.ServerId == serverId {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (f *fakeRegistryRepo) DeleteConnection(_ context.Context, id string) error {
	if _, ok := f.connections[id]; !ok {
		return repository.ErrConnectionNotFound
	}
	delete(f.connections, id)
	return nil
}

func (f *fakeRegistryRepo) CreateMapping(_ context.Context, mapping *models.ScopeMapping) error {
	copied := *mapping
	f.mappings[mapping.Id] = &copied
	return nil
}

func (f *fakeRegistryRepo) ListMappings(_ context.Context, serverId, scopeId string) ([]models.ScopeMapping, error) {
	var out []models.ScopeMapping
	for _, mapping := range f.mappings {
		if mapping.ServerId != serverId {
			continue
		}
		if scopeId != "" && mapping.ScopeId != scopeId {
			continue
		}
		out = append(out, *mapping)
	}
	return out, nil
}

func (f *fakeRegistryRepo) ListMappingsByConnection(_ context.Context, connectionId string) ([]models.ScopeMapping, error) {
	var out []models.ScopeMapping
	for _, mapping := range f.mappings {
		if mapping.ConnectionId == connectionId {
			out = append(out, *mapping)
		}
	}
	return out, nil
}

func (f *fakeRegistryRepo) DeleteMapping(_ context.Context, id string) error {
	if _, ok := f.mappings[id]; !ok {
		return repository.ErrMappingNotFound
	}
	delete(f.mappings, id)
	return nil
}

type fakeClientRepo struct {
	clients map[string]*models.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: make(map[string]*models.Client)}
}

func (f *fakeClientRepo) CreateClient(_ context.Context, c *models.Client) error {
	if _, ok := f.clients[c.ClientId]; ok {
		return repository.ErrClientAlreadyExists
	}
	copied := *c
	f.clients[c.ClientId] = &copied
	return nil
}

func (f *fakeClientRepo) GetClientById(_ context.Context, clientId string) (*models.Client, error) {
	if c, ok := f.clients[clientId]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, repository.ErrClientNotFound
}

func (f *fakeClientRepo) GetClientByName(_ context.Context, serverId, clientName string) (*models.Client, error) {
	for _, c := range f.clients {
		if c.ServerId == serverId && c.ClientName == clientName {
			copied := *c
			return &copied, nil
		}
	}
	return nil, repository.ErrClientNotFound
}

func (f *fakeClientRepo) ListClients(_ context.Context) ([]models.Client, error) {
	var out []models.Client
	for _, c := range f.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeClientRepo) DeleteClient(_ context.Context, clientId string) error {
	if _, ok := f.clients[clientId]; !ok {
		return repository.ErrClientNotFound
	}
	delete(f.clients, clientId)
	return nil
}

type fakeJourneyRepo struct {
	journeys map[string]*models.AuthorizationJourney
}

func newFakeJourneyRepo() *fakeJourneyRepo {
	return &fakeJourneyRepo{journeys: make(map[string]*models.AuthorizationJourney)}
}

func copyJourney(j *models.AuthorizationJourney) *models.AuthorizationJourney {
	copied := *j
	copied.McpAuthorizationFlow.Scope = append([]string(nil), j.McpAuthorizationFlow.Scope...)
	copied.ConnectionAuthorizationFlows = append([]models.ConnectionAuthorizationFlow(nil), j.ConnectionAuthorizationFlows...)
	return &copied
}

func (f *fakeJourneyRepo) CreateJourney(_ context.Context, journey *models.AuthorizationJourney) error {
	journey.Version = 1
	f.journeys[journey.Id] = copyJourney(journey)
	return nil
}

func (f *fakeJourneyRepo) GetJourneyById(_ context.Context, id string) (*models.AuthorizationJourney, error) {
	if j, ok := f.journeys[id]; ok {
		return copyJourney(j), nil
	}
	return nil, repository.ErrJourneyNotFound
}

func (f *fakeJourneyRepo) GetJourneyByAuthorizationCode(_ context.Context, code string) (*models.AuthorizationJourney, error) {
	for _, j := range f.journeys {
		if j.McpAuthorizationFlow.AuthorizationCode == code {
			return copyJourney(j), nil
		}
	}
	return nil, repository.ErrJourneyNotFound
}

func (f *fakeJourneyRepo) ListJourneysBySubject(_ context.Context, serverId, subject string) ([]models.AuthorizationJourney, error) {
	var out []models.AuthorizationJourney
	for _, j := range f.journeys {
		if j.ServerId == serverId && j.Subject == subject {
			out = append(out, *copyJourney(j))
		}
	}
	return out, nil
}

func (f *fakeJourneyRepo) ListStaleJourneys(_ context.Context, cutoff time.Time) ([]models.AuthorizationJourney, error) {
	var out []models.AuthorizationJourney
	for _, j := range f.journeys {
		if !j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			out = append(out, *copyJourney(j))
		}
	}
	return out, nil
}

func (f *fakeJourneyRepo) ListPurgeableJourneys(_ context.Context, cutoff time.Time) ([]models.AuthorizationJourney, error) {
	var out []models.AuthorizationJourney
	for _, j := range f.journeys {
		switch j.Status {
		case models.JourneyDenied, models.JourneyFailed, models.JourneyExpired:
			if j.UpdatedAt.Before(cutoff) {
				out = append(out, *copyJourney(j))
			}
		}
	}
	return out, nil
}

// UpdateJourney mirrors the conditional-write semantics of the real table
func (f *fakeJourneyRepo) UpdateJourney(_ context.Context, journey *models.AuthorizationJourney) error {
	stored, ok := f.journeys[journey.Id]
	if !ok {
		return repository.ErrJourneyNotFound
	}
	if stored.Version != journey.Version {
		return repository.ErrVersionConflict
	}
	journey.Version++
	journey.UpdatedAt = time.Now().UTC()
	f.journeys[journey.Id] = copyJourney(journey)
	return nil
}

func (f *fakeJourneyRepo) DeleteJourney(_ context.Context, id string) error {
	delete(f.journeys, id)
	return nil
}

// fakeProvider is a scripted downstream provider
type fakeProvider struct {
	authorizeBase string
	exchangeToken *DownstreamToken
	exchangeErr   error
	refreshToken  *DownstreamToken
	refreshErr    error
	refreshCalls  int
}

func (p *fakeProvider) AuthorizeURL(state string) string {
	return fmt.Sprintf("%s?state=%s", p.authorizeBase, state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*DownstreamToken, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.exchangeToken, nil
}

func (p *fakeProvider) Refresh(_ context.Context, refreshToken string) (*DownstreamToken, error) {
	p.refreshCalls++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.refreshToken, nil
}

// fakeProviderBuilder hands out one scripted provider per connection id
type fakeProviderBuilder struct {
	providers map[string]*fakeProvider
}

func newFakeProviderBuilder() *fakeProviderBuilder {
	return &fakeProviderBuilder{providers: make(map[string]*fakeProvider)}
}

func (b *fakeProviderBuilder) ForConnection(conn *models.Connection, downstreamScope string) (DownstreamProvider, error) {
	if p, ok := b.providers[conn.Id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no scripted provider for connection %s", conn.Id)
}
