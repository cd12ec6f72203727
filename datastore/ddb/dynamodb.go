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
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/suparena/itemstore/datastore"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/storagemodels"
)

// Attribute names of the table layout. Every record is a single object whose
// PK and SK both hold the logical key. The record itself lives in a map
// attribute.
const (
	AttrPK   = "PK"
	AttrSK   = "SK"
	AttrData = "Data"
)

// maxBatchWrite is the DynamoDB limit of requests per BatchWriteItem call.
const maxBatchWrite = 25

// Client is the subset of the DynamoDB API used by the adapter. *dynamodb.Client
// satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *sdk.BatchWriteItemInput, optFns ...func(*sdk.Options)) (*sdk.BatchWriteItemOutput, error)
}

// ClientConfig describes how to reach DynamoDB.
type ClientConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string
}

// NewClient initializes a DynamoDB client. Static credentials are used when an
// access key is given, the default credential chain otherwise.
func NewClient(ctx context.Context, cc ClientConfig) (*sdk.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cc.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cc.Region))
	}
	if cc.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cc.AccessKey, cc.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if cc.Endpoint != "" {
			o.BaseEndpoint = aws.String(cc.Endpoint)
		}
	}), nil
}

// Adapter stores records in a single DynamoDB table. Transactions are not
// supported.
type Adapter struct {
	datastore.Base

	client    Client
	tableName string
	logger    *zap.Logger
}

var _ datastore.Adapter = (*Adapter)(nil)

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the logger used by the adapter
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New returns an adapter on tableName. The table must exist with a string hash
// key PK and a string range key SK.
func New(client Client, tableName string, opts ...Option) (*Adapter, error) {
	if client == nil {
		return nil, stderrors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, stderrors.New("dynamodb table name is required")
	}

	a := &Adapter{
		client:    client,
		tableName: tableName,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("datastore.ddb")
	return a, nil
}

// TableName returns the table the adapter works on.
func (a *Adapter) TableName() string {
	return a.tableName
}

// keyOf builds the primary key of a single object record.
func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: key},
		AttrSK: &types.AttributeValueMemberS{Value: key},
	}
}

func itemOf(key string, rec storagemodels.Record) (map[string]types.AttributeValue, error) {
	if rec == nil {
		rec = storagemodels.Record{}
	}
	data, err := attributevalue.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %s: %w", key, err)
	}
	item := keyOf(key)
	item[AttrData] = data
	return item, nil
}

func (a *Adapter) Create(ctx context.Context, keyTemplate string, rec storagemodels.Record) (string, error) {
	for {
		key, _, err := datastore.ExpandTemplate(keyTemplate)
		if err != nil {
			return "", err
		}
		item, err := itemOf(key, rec)
		if err != nil {
			return "", err
		}

		_, err = a.client.PutItem(ctx, &sdk.PutItemInput{
			TableName:           &a.tableName,
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(" + AttrPK + ")"),
		})
		if err != nil {
			var cfe *types.ConditionalCheckFailedException
			if stderrors.As(err, &cfe) {
				continue
			}
			return "", fmt.Errorf("PutItem failed for %s: %w", key, err)
		}
		return key, nil
	}
}

func (a *Adapter) Has(ctx context.Context, key string) (bool, error) {
	out, err := a.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:            &a.tableName,
		Key:                  keyOf(key),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String(AttrPK),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem failed for %s: %w", key, err)
	}
	return len(out.Item) > 0, nil
}

// Read returns the record at key. Numbers come back as float64.
func (a *Adapter) Read(ctx context.Context, key string, opts ...storagemodels.ReadOption) (storagemodels.Record, error) {
	out, err := a.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &a.tableName,
		Key:            keyOf(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem failed for %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		o := storagemodels.ApplyReadOptions(opts...)
		if o.HasFallback {
			return o.IfMissing, nil
		}
		return nil, errors.NewNotFoundError("record", key)
	}

	rec := storagemodels.Record{}
	if data, ok := out.Item[AttrData]; ok {
		if err := attributevalue.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", key, err)
		}
		if rec == nil {
			rec = storagemodels.Record{}
		}
	}
	return rec, nil
}

func (a *Adapter) Write(ctx context.Context, key string, rec storagemodels.Record) (storagemodels.Record, error) {
	item, err := itemOf(key, rec)
	if err != nil {
		return nil, err
	}
	if _, err := a.client.PutItem(ctx, &sdk.PutItemInput{
		TableName: &a.tableName,
		Item:      item,
	}); err != nil {
		return nil, fmt.Errorf("PutItem failed for %s: %w", key, err)
	}
	return rec, nil
}

// Remove deletes key and every key nested below it. The nested keys are found
// by a table scan.
func (a *Adapter) Remove(ctx context.Context, key string) (string, error) {
	if key == "" {
		if err := a.Purge(ctx); err != nil {
			return "", err
		}
		return key, nil
	}

	if _, err := a.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName: &a.tableName,
		Key:       keyOf(key),
	}); err != nil {
		return "", fmt.Errorf("DeleteItem failed for %s: %w", key, err)
	}

	nested, err := a.collect(ctx, key+"/")
	if err != nil {
		return "", err
	}
	if err := a.deleteAll(ctx, nested); err != nil {
		return "", err
	}
	return key, nil
}

func (a *Adapter) Purge(ctx context.Context) error {
	keys, err := a.collect(ctx, "")
	if err != nil {
		return err
	}
	return a.deleteAll(ctx, keys)
}

// collect gathers all keys starting with prefix.
func (a *Adapter) collect(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for r := range a.KeyStream(ctx, storagemodels.WithPrefix(prefix), storagemodels.WithSeparator("")) {
		if r.Error != nil {
			return nil, r.Error
		}
		keys = append(keys, r.Key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// deleteAll removes keys in batches, resubmitting unprocessed requests.
func (a *Adapter) deleteAll(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxBatchWrite {
		end := min(start+maxBatchWrite, len(keys))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: keyOf(key)},
			})
		}
		if err := a.batchWrite(ctx, requests); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{a.tableName: requests}
	for attempt := 0; len(pending[a.tableName]) > 0; attempt++ {
		if attempt > 0 {
			if attempt > defaultMaxRetries {
				return fmt.Errorf("BatchWriteItem left %d unprocessed requests", len(pending[a.tableName]))
			}
			a.logger.Warn("resubmitting unprocessed deletes",
				zap.Int("attempt", attempt), zap.Int("pending", len(pending[a.tableName])))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * batchBackoff):
			}
		}

		out, err := a.client.BatchWriteItem(ctx, &sdk.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("BatchWriteItem failed: %w", err)
		}
		pending = out.UnprocessedItems
	}
	return nil
}
