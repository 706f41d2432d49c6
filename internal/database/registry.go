package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
)

var (
	ErrServerNotFound      = errors.New("server not found")
	ErrServerAlreadyExists = errors.New("server already exists")
	ErrScopeNotFound       = errors.New("scope not found")
	ErrScopeAlreadyExists  = errors.New("scope already exists")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrConnectionExists    = errors.New("connection already exists")
	ErrMappingNotFound     = errors.New("mapping not found")
)

// RegistryDB handles server, scope, connection and mapping database operations
type RegistryDB struct {
	client           *Client
	serversTable     string
	scopesTable      string
	connectionsTable string
	mappingsTable    string
}

// NewRegistryDB creates a new RegistryDB instance
func NewRegistryDB(client *Client) *RegistryDB {
	return &RegistryDB{
		client:           client,
		serversTable:     client.Tables.Servers,
		scopesTable:      client.Tables.Scopes,
		connectionsTable: client.Tables.Connections,
		mappingsTable:    client.Tables.Mappings,
	}
}

// CreateServer stores a new resource server row
func (db *RegistryDB) CreateServer(ctx context.Context, server *models.Server) error {
	item, err := attributevalue.MarshalMap(server)
	if err != nil {
		return fmt.Errorf("failed to marshal server: %w", err)
	}

	_, err = db.client.DynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(db.serversTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(Id)"),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrServerAlreadyExists
		}
		return fmt.Errorf("failed to put server: %w", err)
	}

	logger.WithField("server_id", server.Id).Debug("Server stored in DynamoDB")
	return nil
}

// GetServerById retrieves a server by its system id
func (db *RegistryDB) GetServerById(ctx context.Context, id string) (*models.Server, error) {
	result, err := db.client.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(db.serversTable),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	if result.Item == nil {
		return nil, ErrServerNotFound
	}

	var server models.Server
	if err := attributevalue.UnmarshalMap(result.Item, &server); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server: %w", err)
	}
	return &server, nil
}

// GetServerByProvidedId retrieves a server by its human-chosen identifier
func (db *RegistryDB) GetServerByProvidedId(ctx context.Context, providedId string) (*models.Server, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.serversTable),
		FilterExpression: aws.String("ProvidedId = :providedId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":providedId": &types.AttributeValueMemberS{Value: providedId},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query server: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, ErrServerNotFound
	}

	var server models.Server
	if err := attributevalue.UnmarshalMap(result.Items[0], &server); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server: %w", err)
	}
	return &server, nil
}

// ListServers returns all registered resource servers
func (db *RegistryDB) ListServers(ctx context.Context) ([]models.Server, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(db.serversTable),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan servers: %w", err)
	}

	servers := make([]models.Server, 0, len(result.Items))
	for _, item := range result.Items {
		var server models.Server
		if err := attributevalue.UnmarshalMap(item, &server); err != nil {
			return nil, fmt.Errorf("failed to unmarshal server: %w", err)
		}
		servers = append(servers, server)
	}
	return servers, nil
}

// CreateScope stores a new scope row
func (db *RegistryDB) CreateScope(ctx context.Context, scope *models.Scope) error {
	item, err := attributevalue.MarshalMap(scope)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	_, err = db.client.DynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(db.scopesTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(Id)"),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrScopeAlreadyExists
		}
		return fmt.Errorf("failed to put scope: %w", err)
	}
	return nil
}

// GetScope retrieves a single scope by server and scope identifier
func (db *RegistryDB) GetScope(ctx context.Context, serverId, scopeId string) (*models.Scope, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.scopesTable),
		FilterExpression: aws.String("ServerId = :serverId AND ScopeId = :scopeId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":serverId": &types.AttributeValueMemberS{Value: serverId},
			":scopeId":  &types.AttributeValueMemberS{Value: scopeId},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query scope: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, ErrScopeNotFound
	}

	var scope models.Scope
	if err := attributevalue.UnmarshalMap(result.Items[0], &scope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
	}
	return &scope, nil
}

// ListScopes returns all scopes registered for a server
func (db *RegistryDB) ListScopes(ctx context.Context, serverId string) ([]models.Scope, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.scopesTable),
		FilterExpression: aws.String("ServerId = :serverId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":serverId": &types.AttributeValueMemberS{Value: serverId},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan scopes: %w", err)
	}

	scopes := make([]models.Scope, 0, len(result.Items))
	for _, item := range result.Items {
		var scope models.Scope
		if err := attributevalue.UnmarshalMap(item, &scope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
		}
		scopes = append(scopes, scope)
	}
	return scopes, nil
}

// DeleteScope removes a scope row by its system id
func (db *RegistryDB) DeleteScope(ctx context.Context, id string) error {
	_, err := db.client.DynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(db.scopesTable),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete scope: %w", err)
	}
	return nil
}

// GetScopeById retrieves a scope by its system id
func (db *RegistryDB) GetScopeById(ctx context.Context, id string) (*models.Scope, error) {
	result, err := db.client.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(db.scopesTable),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get scope: %w", err)
	}
	if result.Item == nil {
		return nil, ErrScopeNotFound
	}

	var scope models.Scope
	if err := attributevalue.UnmarshalMap(result.Item, &scope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
	}
	return &scope, nil
}

// CreateConnection stores a new downstream provider row
func (db *RegistryDB) CreateConnection(ctx context.Context, conn *models.Connection) error {
	item, err := attributevalue.MarshalMap(conn)
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	_, err = db.client.DynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(db.connectionsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(Id)"),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrConnectionExists
		}
		return fmt.Errorf("failed to put connection: %w", err)
	}
	return nil
}

// GetConnectionById retrieves a connection by its system id
func (db *RegistryDB) GetConnectionById(ctx context.Context, id string) (*models.Connection, error) {
	result, err := db.client.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(db.connectionsTable),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if result.Item == nil {
		return nil, ErrConnectionNotFound
	}

	var conn models.Connection
	if err := attributevalue.UnmarshalMap(result.Item, &conn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
	}
	return &conn, nil
}

// GetConnectionByProvidedId retrieves a connection by server and provided id
func (db *RegistryDB) GetConnectionByProvidedId(ctx context.Context, serverId, providedId string) (*models.Connection, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.connectionsTable),
		FilterExpression: aws.String("ServerId = :serverId AND ProvidedId = :providedId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":serverId":   &types.AttributeValueMemberS{Value: serverId},
			":providedId": &types.AttributeValueMemberS{Value: providedId},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, ErrConnectionNotFound
	}

	var conn models.Connection
	if err := attributevalue.UnmarshalMap(result.Items[0], &conn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
	}
	return &conn, nil
}

// ListConnections returns all connections registered for a server
func (db *RegistryDB) ListConnections(ctx context.Context, serverId string) ([]models.Connection, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.connectionsTable),
		FilterExpression: aws.String("ServerId = :serverId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":serverId": &types.AttributeValueMemberS{Value: serverId},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan connections: %w", err)
	}

	conns := make([]models.Connection, 0, len(result.Items))
	for _, item := range result.Items {
		var conn models.Connection
		if err := attributevalue.UnmarshalMap(item, &conn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// DeleteConnection removes a connection row by its system id
func (db *RegistryDB) DeleteConnection(ctx context.Context, id string) error {
	_, err := db.client.DynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(db.connectionsTable),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}

// CreateMapping stores a new scope mapping row
func (db *RegistryDB) CreateMapping(ctx context.Context, mapping *models.ScopeMapping) error {
	item, err := attributevalue.MarshalMap(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	_, err = db.client.DynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(db.mappingsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(Id)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put mapping: %w", err)
	}
	return nil
}

// ListMappings returns all mappings for a server, optionally filtered by scope
func (db *RegistryDB) ListMappings(ctx context.Context, serverId, scopeId string) ([]models.ScopeMapping, error) {
	filter := "ServerId = :serverId"
	values := map[string]types.AttributeValue{
		":serverId": &types.AttributeValueMemberS{Value: serverId},
	}
	if scopeId != "" {
		filter += " AND ScopeId = :scopeId"
		values[":scopeId"] = &types.AttributeValueMemberS{Value: scopeId}
	}

	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(db.mappingsTable),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan mappings: %w", err)
	}

	mappings := make([]models.ScopeMapping, 0, len(result.Items))
	for _, item := range result.Items {
		var mapping models.ScopeMapping
		if err := attributevalue.UnmarshalMap(item, &mapping); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mapping: %w", err)
		}
		mappings = append(mappings, mapping)
	}
	return mappings, nil
}

// ListMappingsByConnection returns all mappings referencing a connection
func (db *RegistryDB) ListMappingsByConnection(ctx context.Context, connectionId string) ([]models.ScopeMapping, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.mappingsTable),
		FilterExpression: aws.String("ConnectionId = :connectionId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":connectionId": &types.AttributeValueMemberS{Value: connectionId},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan mappings: %w", err)
	}

	mappings := make([]models.ScopeMapping, 0, len(result.Items))
	for _, item := range result.Items {
		var mapping models.ScopeMapping
		if err := attributevalue.UnmarshalMap(item, &mapping); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mapping: %w", err)
		}
		mappings = append(mappings, mapping)
	}
	return mappings, nil
}

// DeleteMapping removes a mapping row by its system id
func (db *RegistryDB) DeleteMapping(ctx context.Context, id string) error {
	_, err := db.client.DynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(db.mappingsTable),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	return nil
}
