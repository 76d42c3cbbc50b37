package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

// classify maps DynamoDB failures onto the application error taxonomy so
// callers can decide on retry without knowing the SDK types.
func classify(err error, message string) error {
	if err == nil {
		return nil
	}

	var (
		throttled *types.ProvisionedThroughputExceededException
		limited   *types.RequestLimitExceeded
		internal  *types.InternalServerError
		missing   *types.ResourceNotFoundException
	)
	switch {
	case errors.As(err, &throttled), errors.As(err, &limited), errors.As(err, &internal):
		return appErrors.NewTransient(message, err)
	case errors.As(err, &missing):
		return appErrors.NewInternal(message+": table not found", err)
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.NewTimeout(message, err)
	}
	return appErrors.NewInternal(message, err)
}
