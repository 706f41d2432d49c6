package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
)

var (
	ErrJourneyNotFound = errors.New("journey not found")
	ErrVersionConflict = errors.New("journey version conflict")
)

// JourneyDB handles authorization journey database operations.
// All updates are compare-and-set on the stored Version attribute so that
// racing downstream callbacks and code exchanges serialize cleanly.
type JourneyDB struct {
	client        *Client
	journeysTable string
}

// NewJourneyDB creates a new JourneyDB instance
func NewJourneyDB(client *Client) *JourneyDB {
	return &JourneyDB{
		client:        client,
		journeysTable: client.Tables.Journeys,
	}
}

// CreateJourney stores a new journey row with Version 1
func (db *JourneyDB) CreateJourney(ctx context.Context, journey *models.AuthorizationJourney) error {
	journey.Version = 1

	item, err := attributevalue.MarshalMap(journey)
	if err != nil {
		return fmt.Errorf("failed to marshal journey: %w", err)
	}

	_, err = db.client.DynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(db.journeysTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(Id)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put journey: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"journey_id": journey.Id,
		"client_id":  journey.ClientId,
		"server_id":  journey.ServerId,
	}).Debug("Journey stored in DynamoDB")
	return nil
}

// GetJourneyById retrieves a journey by its id
func (db *JourneyDB) GetJourneyById(ctx context.Context, id string) (*models.AuthorizationJourney, error) {
	result, err := db.client.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(db.journeysTable),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get journey: %w", err)
	}
	if result.Item == nil {
		return nil, ErrJourneyNotFound
	}

	var journey models.AuthorizationJourney
	if err := attributevalue.UnmarshalMap(result.Item, &journey); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journey: %w", err)
	}
	return &journey, nil
}

// GetJourneyByAuthorizationCode retrieves a journey by its issued MCP
// authorization code
func (db *JourneyDB) GetJourneyByAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationJourney, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.journeysTable),
		FilterExpression: aws.String("McpAuthorizationFlow.AuthorizationCode = :code"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query journey by code: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, ErrJourneyNotFound
	}

	var journey models.AuthorizationJourney
	if err := attributevalue.UnmarshalMap(result.Items[0], &journey); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journey: %w", err)
	}
	return &journey, nil
}

// ListJourneysBySubject returns all journeys belonging to a resource owner,
// scoped to a server
func (db *JourneyDB) ListJourneysBySubject(ctx context.Context, serverId, subject string) ([]models.AuthorizationJourney, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.journeysTable),
		FilterExpression: aws.String("ServerId = :serverId AND Subject = :subject"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":serverId": &types.AttributeValueMemberS{Value: serverId},
			":subject":  &types.AttributeValueMemberS{Value: subject},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query journeys by subject: %w", err)
	}

	journeys := make([]models.AuthorizationJourney, 0, len(result.Items))
	for _, item := range result.Items {
		var journey models.AuthorizationJourney
		if err := attributevalue.UnmarshalMap(item, &journey); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journey: %w", err)
		}
		journeys = append(journeys, journey)
	}
	return journeys, nil
}

// ListStaleJourneys returns non-terminal journeys last touched before cutoff
func (db *JourneyDB) ListStaleJourneys(ctx context.Context, cutoff time.Time) ([]models.AuthorizationJourney, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.journeysTable),
		FilterExpression: aws.String("UpdatedAt < :cutoff AND NOT (#status IN (:exchanged, :denied, :failed, :expired))"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff":    &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.UTC().Unix(), 10)},
			":exchanged": &types.AttributeValueMemberS{Value: string(models.JourneyAuthorizationCodeExchanged)},
			":denied":    &types.AttributeValueMemberS{Value: string(models.JourneyDenied)},
			":failed":    &types.AttributeValueMemberS{Value: string(models.JourneyFailed)},
			":expired":   &types.AttributeValueMemberS{Value: string(models.JourneyExpired)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stale journeys: %w", err)
	}

	journeys := make([]models.AuthorizationJourney, 0, len(result.Items))
	for _, item := range result.Items {
		var journey models.AuthorizationJourney
		if err := attributevalue.UnmarshalMap(item, &journey); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journey: %w", err)
		}
		journeys = append(journeys, journey)
	}
	return journeys, nil
}

// ListPurgeableJourneys returns denied, failed and expired journeys last
// touched before cutoff. Exchanged journeys are excluded because token
// exchange still reads their downstream tokens.
func (db *JourneyDB) ListPurgeableJourneys(ctx context.Context, cutoff time.Time) ([]models.AuthorizationJourney, error) {
	result, err := db.client.DynamoDB.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(db.journeysTable),
		FilterExpression: aws.String("UpdatedAt < :cutoff AND #status IN (:denied, :failed, :expired)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff":  &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.UTC().Unix(), 10)},
			":denied":  &types.AttributeValueMemberS{Value: string(models.JourneyDenied)},
			":failed":  &types.AttributeValueMemberS{Value: string(models.JourneyFailed)},
			":expired": &types.AttributeValueMemberS{Value: string(models.JourneyExpired)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan purgeable journeys: %w", err)
	}

	journeys := make([]models.AuthorizationJourney, 0, len(result.Items))
	for _, item := range result.Items {
		var journey models.AuthorizationJourney
		if err := attributevalue.UnmarshalMap(item, &journey); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journey: %w", err)
		}
		journeys = append(journeys, journey)
	}
	return journeys, nil
}

// UpdateJourney replaces the journey row if and only if the stored Version
// still matches journey.Version. On success the in-memory Version is bumped.
func (db *JourneyDB) UpdateJourney(ctx context.Context, journey *models.AuthorizationJourney) error {
	expectedVersion := journey.Version
	journey.Version = expectedVersion + 1
	journey.UpdatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(journey)
	if err != nil {
		journey.Version = expectedVersion
		return fmt.Errorf("failed to marshal journey: %w", err)
	}

	_, err = db.client.DynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(db.journeysTable),
		Item:                item,
		ConditionExpression: aws.String("Version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		},
	})
	if err != nil {
		journey.Version = expectedVersion
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			logger.WithFields(map[string]interface{}{
				"journey_id": journey.Id,
				"version":    expectedVersion,
			}).Warn("Journey update lost a compare-and-set race")
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to update journey: %w", err)
	}
	return nil
}

// DeleteJourney removes a journey row. Deleting an absent row is not an error
// so cleanup sweeps stay idempotent.
func (db *JourneyDB) DeleteJourney(ctx context.Context, id string) error {
	_, err := db.client.DynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(db.journeysTable),
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete journey: %w", err)
	}
	return nil
}
