package kvstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

var (
	_ core.KVStore = (*RedisKVStore)(nil)
	_ core.KVStore = (*DynamoDBKVStore)(nil)
)

func TestRegisteredTypes(t *testing.T) {
	require.Equal(t, []string{"dynamodb", "redis"}, RegisteredTypes())
	require.True(t, IsTypeRegistered("redis"))
	require.False(t, IsTypeRegistered("memcached"))
}

func TestCreateRejectsUnknownOrMissingType(t *testing.T) {
	_, err := Create(Config{})
	require.Error(t, err)

	_, err = Create(Config{Type: "memcached"})
	require.ErrorContains(t, err, "unsupported KV store type")
}

func TestRedisValidation(t *testing.T) {
	valid := Config{
		Type:         "redis",
		Endpoints:    []string{"localhost:6379"},
		PoolSize:     10,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	f := &RedisFactory{}
	require.NoError(t, f.Validate(valid))

	noEndpoints := valid
	noEndpoints.Endpoints = nil
	require.Error(t, f.Validate(noEndpoints))

	badDB := valid
	badDB.DB = 16
	require.Error(t, f.Validate(badDB))

	noPool := valid
	noPool.PoolSize = 0
	require.Error(t, f.Validate(noPool))

	_, err := Create(noPool)
	require.ErrorContains(t, err, "invalid configuration for redis")
}

func TestDynamoDBValidation(t *testing.T) {
	f := &DynamoDBFactory{}
	require.NoError(t, f.Validate(Config{Type: "dynamodb", Region: "us-east-1", TableName: "acks"}))
	require.Error(t, f.Validate(Config{Type: "dynamodb", TableName: "acks"}))
	require.Error(t, f.Validate(Config{Type: "dynamodb", Region: "us-east-1"}))
}

// fakeDynamo keeps items in memory and leaves the first unprocessedOnce
// requests of a batch unprocessed once.
type fakeDynamo struct {
	items           map[string]map[string]types.AttributeValue
	batchCalls      int
	unprocessedOnce int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	return key["key"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batchCalls++
	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, requests := range in.RequestItems {
		if len(requests) > dynamoBatchLimit {
			return nil, fmt.Errorf("too many requests: %d", len(requests))
		}
		for i, req := range requests {
			if i < f.unprocessedOnce {
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], req)
				continue
			}
			f.items[keyOf(req.PutRequest.Item)] = req.PutRequest.Item
		}
	}
	f.unprocessedOnce = 0
	return out, nil
}

func TestDynamoDBSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewDynamoDBKVStoreWithClient(newFakeDynamo(), "acks")

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, core.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), val)

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Delete(ctx, "k"))
	ok, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDynamoDBExpiredItemsAreMissing(t *testing.T) {
	ctx := context.Background()
	store := NewDynamoDBKVStoreWithClient(newFakeDynamo(), "acks")

	start := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return start }
	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	store.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, core.ErrKeyNotFound)

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDynamoDBBatchSetChunksAndResubmits(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	fake.unprocessedOnce = 2
	store := NewDynamoDBKVStoreWithClient(fake, "acks")

	items := make(map[string][]byte)
	for i := 0; i < 30; i++ {
		items[fmt.Sprintf("k%d", i)] = []byte{byte(i)}
	}
	require.NoError(t, store.BatchSet(ctx, items, time.Hour))

	require.Len(t, fake.items, 30)
	// Two chunks plus one resubmission.
	require.Equal(t, 3, fake.batchCalls)
	require.NotNil(t, fake.items["k0"]["ttl"])
}

func TestClosedStoresFail(t *testing.T) {
	store := NewDynamoDBKVStoreWithClient(newFakeDynamo(), "acks")
	require.NoError(t, store.Close())
	_, err := store.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrStoreClosed)
}
