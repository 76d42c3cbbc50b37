// Package dynamodb implements the persistence adapters over the
// single-table analytics store. Sessions live under PK=SITE#<id> with
// SK=SESSION#<start>, finalized windows under SK=WINDOW#<timeframe>#<start>.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

// NewClient builds a DynamoDB client from the database configuration. A
// non-empty endpoint points the client at a local instance for development.
func NewClient(ctx context.Context, cfg config.Database) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, appErrors.NewInternal("failed to load AWS configuration", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return client, nil
}
