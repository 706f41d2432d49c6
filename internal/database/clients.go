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
	ErrClientNotFound      = errors.New("client not found")
	ErrClientAlreadyExists = errors.New("client already exists")
)

// ClientDB handles registered OAuth client database operations
type ClientDB struct {
	client       *Client
	clientsTable string
}

// NewClientDB creates a new ClientDB instance
func NewClientDB(client *Client) *ClientDB {
	return &ClientDB{
		client:       client,
		clientsTable: client.Tables.Clients,
	}
}

// CreateClient stores a newly registered OAuth client
func (db *ClientDB) CreateClient(ctx context.Context, c *models.Client) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}

	_, err = db.client.DynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(db.clientsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(ClientId)"),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrClientAlreadyExists
		}
		return fmt.Errorf("failed to put client: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"client_id":   c.ClientId,
		"client_name": c.ClientName,
	}).Debug("Client stored in DynamoDB")
	return nil
}

// GetClientById retrieves a registered client by client_id
func (db *ClientDB) GetClientById(ctx context.Context, clientId string) (*models.Client, error) {
	result, err := db.client.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(db.clientsTable),
		Key: map[string]types.AttributeValue{
			"ClientId": &types.AttributeValueMemberS{Value: clientId},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if result.Item == nil {
		return nil, ErrClientNotFound
	}

	var c models.Client
	if err := attributevalue.UnmarshalMap(result.Item, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return &c, nil
}

// GetClientByName retrieves a registered client by name within a server.
// Used to enforce unique registration names.
func (db *ClientDB) GetClientByName(ctx context.Context, serverId, clientName string) (*models.Client, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.clientsTable),
		FilterExpression: aws.String("ServerId = :serverId AND ClientName = :clientName"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":serverId":   &types.AttributeValueMemberS{Value: serverId},
			":clientName": &types.AttributeValueMemberS{Value: clientName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query client: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, ErrClientNotFound
	}

	var c models.Client
	if err := attributevalue.UnmarshalMap(result.Items[0], &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return &c, nil
}

// ListClients returns all registered clients
func (db *ClientDB) ListClients(ctx context.Context) ([]models.Client, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(db.clientsTable),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan clients: %w", err)
	}

	clients := make([]models.Client, 0, len(result.Items))
	for _, item := range result.Items {
		var c models.Client
		if err := attributevalue.UnmarshalMap(item, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// DeleteClient removes a registered client (administrative revocation)
func (db *ClientDB) DeleteClient(ctx context.Context, clientId string) error {
	_, err := db.client.DynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(db.clientsTable),
		Key: map[string]types.AttributeValue{
			"ClientId": &types.AttributeValueMemberS{Value: clientId},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}
