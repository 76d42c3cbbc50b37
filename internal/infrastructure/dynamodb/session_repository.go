package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/observability"
	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

const (
	sitePrefix    = "SITE#"
	sessionPrefix = "SESSION#"

	// sessionKeyTimeFormat keeps all nine fraction digits so every sort
	// key has the same width and byte order is chronological order.
	// RFC3339Nano would trim trailing zeros and break that.
	sessionKeyTimeFormat = "2006-01-02T15:04:05.000000000Z"
)

// sessionSortKey encodes a session start time as its sort key.
func sessionSortKey(ts time.Time) string {
	return sessionPrefix + ts.UTC().Format(sessionKeyTimeFormat)
}

// sessionRecord is the table shape of one session item.
type sessionRecord struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	analytics.Session
}

// SessionRepository reads session records from the single-table store.
// Sessions are written by the tracking pipeline; this repository is
// strictly read-only.
type SessionRepository struct {
	client  *dynamodb.Client
	table   string
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewSessionRepository creates a read-only session source.
func NewSessionRepository(client *dynamodb.Client, cfg config.Database, logger *zap.Logger, metrics *observability.Collector) *SessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepository{
		client:  client,
		table:   cfg.TableName,
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// QuerySessions returns all sessions for the site whose start time falls in
// [start, end), in ascending start order. The sort key encodes the start
// time in a fixed-width UTC format, so lexicographic key order is
// chronological order.
func (r *SessionRepository) QuerySessions(ctx context.Context, siteID string, start, end time.Time) ([]analytics.Session, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	// A key condition allows only one sort-key comparison, so the
	// closed-open range has to go through BETWEEN, which is inclusive on
	// both ends. With fixed-width keys the last key below end is exactly
	// end minus one nanosecond.
	lower := sessionSortKey(start)
	upper := sessionSortKey(end.Add(-time.Nanosecond))

	keyCond := expression.Key("PK").Equal(expression.Value(sitePrefix + siteID)).
		And(expression.Key("SK").Between(expression.Value(lower), expression.Value(upper)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, appErrors.NewInternal("failed to build session query expression", err)
	}

	started := time.Now()
	sessions := make([]analytics.Session, 0)
	var lastKey map[string]types.AttributeValue

	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		}

		output, err := r.client.Query(ctx, input)
		if err != nil {
			r.metrics.RecordStoreOperation("query_sessions", "error")
			return nil, classify(err, fmt.Sprintf("failed to query sessions for site %s", siteID))
		}

		var page []sessionRecord
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &page); err != nil {
			r.metrics.RecordStoreOperation("query_sessions", "error")
			return nil, appErrors.NewInternal("failed to unmarshal session records", err)
		}
		for _, record := range page {
			sessions = append(sessions, record.Session)
		}

		if output.LastEvaluatedKey == nil {
			break
		}
		lastKey = output.LastEvaluatedKey
	}

	r.metrics.RecordStoreOperation("query_sessions", "ok")
	r.logger.Debug("Queried sessions",
		zap.String("siteID", siteID),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("count", len(sessions)),
		zap.Duration("duration", time.Since(started)),
	)
	return sessions, nil
}
