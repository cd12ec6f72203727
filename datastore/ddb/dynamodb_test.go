/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/suparena/itemstore/datastore/testmodels"
	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/model"
	"github.com/suparena/itemstore/storagemodels"
)

func TestMain(m *testing.M) {
	batchBackoff = time.Millisecond
	goleak.VerifyTestMain(m)
}

// fakeClient keeps a table in memory. Scans evaluate Limit items before
// filtering, like DynamoDB does.
type fakeClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	// collisions fails that many conditional puts
	collisions int
	// scanErrs are returned by successive scans before the table is read
	scanErrs []error
	scans    int
	// unprocessed leaves the last delete of the next batch unprocessed
	unprocessed bool
	batches     int
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: map[string]map[string]types.AttributeValue{}}
}

func pkOf(key map[string]types.AttributeValue) string {
	return key[AttrPK].(*types.AttributeValueMemberS).Value
}

func (f *fakeClient) GetItem(_ context.Context, in *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &sdk.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeClient) PutItem(_ context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk := pkOf(in.Item)
	if in.ConditionExpression != nil {
		if _, exists := f.items[pk]; exists || f.collisions > 0 {
			f.collisions--
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	}
	f.items[pk] = in.Item
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(_ context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, pkOf(in.Key))
	return &sdk.DeleteItemOutput{}, nil
}

func (f *fakeClient) Scan(_ context.Context, in *sdk.ScanInput, _ ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scans++
	if len(f.scanErrs) > 0 {
		err := f.scanErrs[0]
		f.scanErrs = f.scanErrs[1:]
		return nil, err
	}

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := pkOf(in.ExclusiveStartKey)
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}
	end := len(keys)
	if in.Limit != nil && start+int(*in.Limit) < end {
		end = start + int(*in.Limit)
	}

	prefix := ""
	if v, ok := in.ExpressionAttributeValues[":prefix"]; ok {
		prefix = v.(*types.AttributeValueMemberS).Value
	}

	out := &sdk.ScanOutput{}
	for _, k := range keys[start:end] {
		if strings.HasPrefix(k, prefix) {
			out.Items = append(out.Items, map[string]types.AttributeValue{
				AttrPK: &types.AttributeValueMemberS{Value: k},
			})
		}
	}
	if end < len(keys) {
		out.LastEvaluatedKey = keyOf(keys[end-1])
	}
	return out, nil
}

func (f *fakeClient) BatchWriteItem(_ context.Context, in *sdk.BatchWriteItemInput, _ ...func(*sdk.Options)) (*sdk.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches++
	out := &sdk.BatchWriteItemOutput{}
	for table, requests := range in.RequestItems {
		if f.unprocessed && len(requests) > 0 {
			f.unprocessed = false
			out.UnprocessedItems = map[string][]types.WriteRequest{table: requests[len(requests)-1:]}
			requests = requests[:len(requests)-1]
		}
		for _, r := range requests {
			delete(f.items, pkOf(r.DeleteRequest.Key))
		}
	}
	return out, nil
}

func (f *fakeClient) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newAdapter(t *testing.T) (*Adapter, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	a, err := New(client, "items")
	require.NoError(t, err)
	return a, client
}

func seed(t *testing.T, a *Adapter, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, err := a.Write(context.Background(), k, storagemodels.Record{"k": k})
		require.NoError(t, err)
	}
}

func collect(t *testing.T, ch <-chan storagemodels.KeyResult) []string {
	t.Helper()
	var keys []string
	for r := range ch {
		require.NoError(t, r.Error)
		keys = append(keys, r.Key)
	}
	sort.Strings(keys)
	return keys
}

func TestNewRequiresClientAndTable(t *testing.T) {
	_, err := New(nil, "items")
	assert.Error(t, err)

	_, err = New(newFakeClient(), "")
	assert.Error(t, err)
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	a, client := newAdapter(t)

	key, err := a.Create(ctx, "models/Test/items/%u", storagemodels.Record{
		"name":   "x",
		"n":      int64(3),
		"nested": map[string]any{"ok": true},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^models/Test/items/[0-9a-f-]{36}$`, key)
	assert.Equal(t, []string{key}, client.keys())

	has, err := a.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, has)

	rec, err := a.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, storagemodels.Record{
		"name":   "x",
		"n":      float64(3),
		"nested": map[string]any{"ok": true},
	}, rec)

	_, err = a.Write(ctx, key, storagemodels.Record{"name": "y"})
	require.NoError(t, err)
	rec, err = a.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, storagemodels.Record{"name": "y"}, rec)

	_, err = a.Read(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))

	rec, err = a.Read(ctx, "missing", storagemodels.WithIfMissing(storagemodels.Record{"d": 1}))
	require.NoError(t, err)
	assert.Equal(t, storagemodels.Record{"d": 1}, rec)

	has, err = a.Has(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = a.Create(ctx, "models/Test/items", storagemodels.Record{})
	assert.True(t, errors.IsFormat(err))
}

func TestCreateRetriesCollisions(t *testing.T) {
	a, client := newAdapter(t)
	client.collisions = 2

	key, err := a.Create(context.Background(), "k/%u", storagemodels.Record{})
	require.NoError(t, err)
	assert.Equal(t, []string{key}, client.keys())
	assert.Equal(t, 0, client.collisions)
}

func TestTransactionsUnsupported(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)

	assert.ErrorIs(t, a.Begin(ctx), errors.ErrNoTransaction)
	assert.ErrorIs(t, a.Commit(ctx), errors.ErrNoTransaction)
	assert.ErrorIs(t, a.RollBack(ctx), errors.ErrNoTransaction)
}

func TestRemoveNested(t *testing.T) {
	ctx := context.Background()
	a, client := newAdapter(t)
	seed(t, a, "a", "a/b", "a/b/c", "ab", "b")

	removed, err := a.Remove(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", removed)
	assert.Equal(t, []string{"ab", "b"}, client.keys())

	_, err = a.Remove(ctx, "nothing")
	assert.NoError(t, err)

	_, err = a.Remove(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, client.keys())
}

func TestPurgeResubmitsUnprocessed(t *testing.T) {
	ctx := context.Background()
	a, client := newAdapter(t)

	var keys []string
	for i := 0; i < 30; i++ {
		keys = append(keys, "k/"+strings.Repeat("x", i+1))
	}
	seed(t, a, keys...)

	client.unprocessed = true
	require.NoError(t, a.Purge(ctx))
	assert.Empty(t, client.keys())
	// two chunks plus one resubmission
	assert.Equal(t, 3, client.batches)
}

func TestKeyStream(t *testing.T) {
	a, _ := newAdapter(t)
	seed(t, a,
		"models/A/items/1",
		"models/A/items/2",
		"models/A/items/2/sub",
		"models/AB/items/3",
		"other",
	)

	tests := []struct {
		name string
		opts []storagemodels.KeyStreamOption
		want []string
	}{
		{"all", nil, []string{"models/A/items/1", "models/A/items/2", "models/A/items/2/sub", "models/AB/items/3", "other"}},
		{"prefix matches whole segments", []storagemodels.KeyStreamOption{storagemodels.WithPrefix("models/A")},
			[]string{"models/A/items/1", "models/A/items/2", "models/A/items/2/sub"}},
		{"depth", []storagemodels.KeyStreamOption{storagemodels.WithPrefix("models/A/items"), storagemodels.WithMaxDepth(1)},
			[]string{"models/A/items/1", "models/A/items/2"}},
		{"small pages", []storagemodels.KeyStreamOption{storagemodels.WithPrefix("models/"), storagemodels.WithPageSize(1)},
			[]string{"models/A/items/1", "models/A/items/2", "models/A/items/2/sub", "models/AB/items/3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(t, a.KeyStream(context.Background(), tt.opts...)))
		})
	}
}

func TestKeyStreamProgress(t *testing.T) {
	a, _ := newAdapter(t)
	seed(t, a, "a", "b", "c", "d", "e")

	var pages []int
	var last storagemodels.StreamProgress
	keys := collect(t, a.KeyStream(context.Background(),
		storagemodels.WithPageSize(2),
		storagemodels.WithProgressHandler(func(p storagemodels.StreamProgress) {
			pages = append(pages, p.PagesProcessed)
			last = p
		}),
	))

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys)
	assert.Equal(t, []int{1, 2, 3}, pages)
	assert.Equal(t, int64(5), last.ItemsProcessed)
}

func TestKeyStreamRetries(t *testing.T) {
	throttled := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}

	t.Run("transient errors", func(t *testing.T) {
		a, client := newAdapter(t)
		seed(t, a, "a", "b")
		client.scanErrs = []error{throttled, &types.ProvisionedThroughputExceededException{}}

		keys := collect(t, a.KeyStream(context.Background(), storagemodels.WithRetryBackoff(time.Millisecond)))
		assert.Equal(t, []string{"a", "b"}, keys)
		assert.Equal(t, 3, client.scans)
	})

	t.Run("exhausted", func(t *testing.T) {
		a, client := newAdapter(t)
		seed(t, a, "a")
		client.scanErrs = []error{throttled, throttled, throttled}

		var results []storagemodels.KeyResult
		for r := range a.KeyStream(context.Background(),
			storagemodels.WithMaxRetries(2),
			storagemodels.WithRetryBackoff(time.Millisecond),
		) {
			results = append(results, r)
		}
		require.Len(t, results, 1)
		assert.Error(t, results[0].Error)
		assert.Equal(t, 3, client.scans)
	})

	t.Run("permanent error", func(t *testing.T) {
		a, client := newAdapter(t)
		client.scanErrs = []error{&types.ResourceNotFoundException{Message: aws.String("no table")}}

		var results []storagemodels.KeyResult
		for r := range a.KeyStream(context.Background(), storagemodels.WithRetryBackoff(time.Millisecond)) {
			results = append(results, r)
		}
		require.Len(t, results, 1)
		var rnf *types.ResourceNotFoundException
		assert.ErrorAs(t, results[0].Error, &rnf)
		assert.Equal(t, 1, client.scans)
	})
}

func TestKeyStreamCancel(t *testing.T) {
	a, _ := newAdapter(t)
	seed(t, a, "a", "b", "c", "d")

	ctx, cancel := context.WithCancel(context.Background())
	ch := a.KeyStream(ctx, storagemodels.WithBufferSize(0), storagemodels.WithPageSize(1))
	first := <-ch
	require.NoError(t, first.Error)
	cancel()
	for range ch {
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"throughput", &types.ProvisionedThroughputExceededException{}, true},
		{"request limit", &types.RequestLimitExceeded{}, true},
		{"internal", &types.InternalServerError{}, true},
		{"throttling code", &smithy.GenericAPIError{Code: "ThrottlingException"}, true},
		{"validation code", &smithy.GenericAPIError{Code: "ValidationException"}, false},
		{"not found", &types.ResourceNotFoundException{}, false},
		{"plain", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestWithModel(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)

	m, err := model.New(testmodels.RatingSystem(), a)
	require.NoError(t, err)
	defer m.Close()

	it := m.NewItem()
	require.NoError(t, it.Set("name", "TrueSkill"))
	require.NoError(t, it.Set("level", 7))
	require.NoError(t, it.Save(ctx))

	other, err := model.New(testmodels.RatingSystem(), a)
	require.NoError(t, err)
	defer other.Close()

	found, err := other.Find(ctx, model.Equals("level", 7), model.Query{}, model.FindOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, it.UUID(), found[0].UUID())

	level, _ := found[0].Get("level")
	assert.Equal(t, int64(7), level)
}
