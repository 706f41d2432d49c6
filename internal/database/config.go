package database

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	appConfig "github.com/imyashkale/authbroker/internal/config"
	"github.com/imyashkale/authbroker/internal/logger"
)

// Tables groups the DynamoDB table names the broker uses
type Tables struct {
	Servers     string
	Scopes      string
	Connections string
	Mappings    string
	Clients     string
	Journeys    string
}

// Client wraps the DynamoDB client together with the broker's table names
type Client struct {
	DynamoDB *dynamodb.Client
	Tables   Tables
}

// NewTables builds the table set from the application config
func NewTables(cfg *appConfig.Config) Tables {
	return Tables{
		Servers:     cfg.ServersTableName,
		Scopes:      cfg.ScopesTableName,
		Connections: cfg.ConnectionsTableName,
		Mappings:    cfg.MappingsTableName,
		Clients:     cfg.ClientsTableName,
		Journeys:    cfg.JourneysTableName,
	}
}

// NewClient creates a new DynamoDB client and verifies that the broker's
// tables are reachable
func NewClient(ctx context.Context, region string, tables Tables) (*Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	for _, table := range []string{tables.Servers, tables.Scopes, tables.Connections, tables.Mappings, tables.Clients, tables.Journeys} {
		if err := ensureTableExists(ctx, dynamoClient, table); err != nil {
			logger.Warnf("Could not verify table existence: %v", err)
		}
	}

	return &Client{
		DynamoDB: dynamoClient,
		Tables:   tables,
	}, nil
}

// ensureTableExists checks that a DynamoDB table exists
func ensureTableExists(ctx context.Context, client *dynamodb.Client, tableName string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})

	if err != nil {
		return fmt.Errorf("table %s does not exist or cannot be accessed: %w", tableName, err)
	}

	logger.Debugf("DynamoDB table '%s' verified", tableName)
	return nil
}
