package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/observability"
	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

const windowPrefix = "WINDOW#"

// windowRecord is the table shape of one finalized aggregation window.
type windowRecord struct {
	PK     string                      `dynamodbav:"PK"`
	SK     string                      `dynamodbav:"SK"`
	Window analytics.AggregationWindow `dynamodbav:"Window"`
}

// WindowStore persists finalized aggregation windows write-once: a
// conditional put rejects any second write for the same (site, timeframe,
// bucket) triple.
type WindowStore struct {
	client  *dynamodb.Client
	table   string
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewWindowStore creates a window store over the analytics table.
func NewWindowStore(client *dynamodb.Client, cfg config.Database, logger *zap.Logger, metrics *observability.Collector) *WindowStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowStore{
		client:  client,
		table:   cfg.TableName,
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: metrics,
	}
}

func windowSortKey(timeframe analytics.Timeframe, start time.Time) string {
	return fmt.Sprintf("%s%s#%d", windowPrefix, timeframe, start.UTC().Unix())
}

// GetWindow returns the stored window for the triple, or nil when none has
// been finalized yet.
func (s *WindowStore) GetWindow(ctx context.Context, siteID string, timeframe analytics.Timeframe, start time.Time) (*analytics.AggregationWindow, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sitePrefix + siteID},
			"SK": &types.AttributeValueMemberS{Value: windowSortKey(timeframe, start)},
		},
	})
	if err != nil {
		s.metrics.RecordStoreOperation("get_window", "error")
		return nil, classify(err, "failed to get aggregation window")
	}
	if output.Item == nil {
		s.metrics.RecordStoreOperation("get_window", "miss")
		return nil, nil
	}

	var record windowRecord
	if err := attributevalue.UnmarshalMap(output.Item, &record); err != nil {
		s.metrics.RecordStoreOperation("get_window", "error")
		return nil, appErrors.NewInternal("failed to unmarshal window record", err)
	}

	s.metrics.RecordStoreOperation("get_window", "ok")
	return &record.Window, nil
}

// PutWindow stores a finalized window. A window that already exists is a
// conflict error; the stored window is never overwritten.
func (s *WindowStore) PutWindow(ctx context.Context, window *analytics.AggregationWindow) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	record := windowRecord{
		PK:     sitePrefix + window.SiteID,
		SK:     windowSortKey(window.Timeframe, window.Start),
		Window: *window,
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return appErrors.NewInternal("failed to marshal window record", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			s.metrics.RecordStoreOperation("put_window", "conflict")
			return appErrors.NewConflict(fmt.Sprintf("window %s already finalized", window.ID()))
		}
		s.metrics.RecordStoreOperation("put_window", "error")
		return classify(err, "failed to put aggregation window")
	}

	s.metrics.RecordStoreOperation("put_window", "ok")
	s.logger.Debug("Window persisted",
		zap.String("window", window.ID()),
	)
	return nil
}
