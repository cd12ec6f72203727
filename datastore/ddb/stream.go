/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/storagemodels"
)

const defaultMaxRetries = 3

var batchBackoff = 100 * time.Millisecond

// KeyStream scans the table page by page. Keys arrive in table order, which is
// not lexical.
func (a *Adapter) KeyStream(ctx context.Context, opts ...storagemodels.KeyStreamOption) <-chan storagemodels.KeyResult {
	o := storagemodels.ApplyKeyStreamOptions(opts...)
	resultCh := make(chan storagemodels.KeyResult, o.BufferSize)

	go a.streamWorker(ctx, o, resultCh)

	return resultCh
}

func (a *Adapter) streamWorker(ctx context.Context, o storagemodels.KeyStreamOptions, resultCh chan<- storagemodels.KeyResult) {
	defer close(resultCh)

	progress := storagemodels.StreamProgress{StartTime: time.Now()}
	reportProgress := func() {
		if o.ProgressHandler == nil {
			return
		}
		if elapsed := time.Since(progress.StartTime).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(progress.ItemsProcessed) / elapsed
		}
		o.ProgressHandler(progress)
	}

	input := &sdk.ScanInput{
		TableName:            &a.tableName,
		ProjectionExpression: aws.String("#pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": AttrPK,
		},
	}
	if o.PageSize > 0 {
		input.Limit = aws.Int32(o.PageSize)
	}
	if o.Prefix != "" {
		input.FilterExpression = aws.String("begins_with(#pk, :prefix)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: o.Prefix},
		}
	}

	for {
		out, err := a.scanWithRetry(ctx, input, o)
		if err != nil {
			if ctx.Err() == nil {
				select {
				case resultCh <- storagemodels.KeyResult{
					Error: err,
					Meta: storagemodels.StreamMeta{
						Index:      progress.ItemsProcessed,
						PageNumber: progress.PagesProcessed,
						Timestamp:  time.Now(),
					},
				}:
				case <-ctx.Done():
				}
			}
			return
		}
		progress.PagesProcessed++

		for _, item := range out.Items {
			pk, ok := item[AttrPK].(*types.AttributeValueMemberS)
			if !ok {
				progress.Errors = append(progress.Errors, fmt.Errorf("item without string %s", AttrPK))
				continue
			}
			if !datastore.MatchKey(pk.Value, o) {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case resultCh <- storagemodels.KeyResult{
				Key: pk.Value,
				Meta: storagemodels.StreamMeta{
					Index:      progress.ItemsProcessed,
					PageNumber: progress.PagesProcessed,
					Timestamp:  time.Now(),
				},
			}:
			}
			progress.ItemsProcessed++
		}

		reportProgress()

		if len(out.LastEvaluatedKey) == 0 {
			return
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// scanWithRetry executes a scan, retrying throttling and server errors with a
// linear backoff.
func (a *Adapter) scanWithRetry(ctx context.Context, input *sdk.ScanInput, o storagemodels.KeyStreamOptions) (*sdk.ScanOutput, error) {
	var lastErr error

	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := a.client.Scan(ctx, input)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		if attempt < o.MaxRetries {
			a.logger.Warn("retrying scan", zap.Int("attempt", attempt+1), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * o.RetryBackoff):
			}
		}
	}

	return nil, fmt.Errorf("scan failed after %d retries: %w", o.MaxRetries, lastErr)
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	var (
		pte *types.ProvisionedThroughputExceededException
		rle *types.RequestLimitExceeded
		ise *types.InternalServerError
	)
	if stderrors.As(err, &pte) || stderrors.As(err, &rle) || stderrors.As(err, &ise) {
		return true
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ProvisionedThroughputExceededException",
			"RequestLimitExceeded", "InternalServerError", "ServiceUnavailable":
			return true
		}
	}

	var retryable interface{ RetryableError() bool }
	if stderrors.As(err, &retryable) {
		return retryable.RetryableError()
	}
	return false
}
