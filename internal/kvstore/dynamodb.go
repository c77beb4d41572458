package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

const (
	// dynamoBatchLimit is the BatchWriteItem request limit.
	dynamoBatchLimit = 25

	// dynamoBatchAttempts bounds resubmission of unprocessed items.
	dynamoBatchAttempts = 3
)

// DynamoDBAPI is the subset of the DynamoDB client used by the store.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoDBKVStore implements the core.KVStore interface using AWS
// DynamoDB. Items carry "key", "value", "created_at" and an optional
// "ttl" epoch attribute; expired items read as missing.
type DynamoDBKVStore struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
	closed    bool
}

// NewDynamoDBKVStore loads the AWS configuration and checks that the
// table exists.
func NewDynamoDBKVStore(cfg Config) (*DynamoDBKVStore, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	client := dynamodb.NewFromConfig(awsCfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(cfg.TableName)}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.TableName, err)
	}

	log.Printf("[DYNAMODB] Using table %s in %s", cfg.TableName, cfg.Region)
	return NewDynamoDBKVStoreWithClient(client, cfg.TableName), nil
}

// NewDynamoDBKVStoreWithClient creates a store over an existing client.
func NewDynamoDBKVStoreWithClient(client DynamoDBAPI, tableName string) *DynamoDBKVStore {
	return &DynamoDBKVStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func (d *DynamoDBKVStore) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoDBKVStore) item(key string, value []byte, ttl time.Duration) map[string]types.AttributeValue {
	now := d.now()
	item := map[string]types.AttributeValue{
		"key":        &types.AttributeValueMemberS{Value: key},
		"value":      &types.AttributeValueMemberB{Value: value},
		"created_at": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
	}
	if ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)}
	}
	return item
}

// expired reports whether the item's ttl attribute lies in the past.
func (d *DynamoDBKVStore) expired(item map[string]types.AttributeValue) bool {
	attr, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return false
	}
	return d.now().Unix() > ttl
}

// Get retrieves a value by key from the store.
func (d *DynamoDBKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed {
		return nil, ErrStoreClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		log.Errorf("[DYNAMODB] Failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if result.Item == nil || d.expired(result.Item) {
		log.Debugf("[DYNAMODB] Key not found: %s", key)
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, key)
	}

	value, ok := result.Item["value"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("invalid value format for key %s", key)
	}
	log.Debugf("[DYNAMODB] GET %s (%d bytes)", key, len(value.Value))
	return value.Value, nil
}

// Set stores a key-value pair with an optional TTL.
func (d *DynamoDBKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.closed {
		return ErrStoreClosed
	}

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      d.item(key, value, ttl),
	})
	if err != nil {
		log.Errorf("[DYNAMODB] Failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	log.Debugf("[DYNAMODB] SET %s (%d bytes, ttl %v)", key, len(value), ttl)
	return nil
}

// Delete removes a key from the store.
func (d *DynamoDBKVStore) Delete(ctx context.Context, key string) error {
	if d.closed {
		return ErrStoreClosed
	}

	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a live key exists in the store.
func (d *DynamoDBKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if d.closed {
		return false, ErrStoreClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(d.tableName),
		Key:                  d.keyAttr(key),
		ProjectionExpression: aws.String("#k, #t"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
			"#t": "ttl",
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return result.Item != nil && !d.expired(result.Item), nil
}

// BatchSet writes items in chunks of 25 and resubmits unprocessed items
// a bounded number of times.
func (d *DynamoDBKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if d.closed {
		return ErrStoreClosed
	}
	if len(items) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for key, value := range items {
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: d.item(key, value, ttl)},
		})
	}

	for i := 0; i < len(requests); i += dynamoBatchLimit {
		end := i + dynamoBatchLimit
		if end > len(requests) {
			end = len(requests)
		}
		if err := d.batchWrite(ctx, requests[i:end]); err != nil {
			return err
		}
	}
	log.Debugf("[DYNAMODB] Batch SET of %d key(s)", len(items))
	return nil
}

func (d *DynamoDBKVStore) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{d.tableName: requests}
	for attempt := 0; attempt < dynamoBatchAttempts; attempt++ {
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("failed to batch set keys: %w", err)
		}
		if len(out.UnprocessedItems[d.tableName]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
		log.Warnf("[DYNAMODB] %d item(s) unprocessed, resubmitting", len(pending[d.tableName]))
	}
	return fmt.Errorf("failed to batch set keys: %d item(s) left unprocessed", len(pending[d.tableName]))
}

// Close marks the store closed. The DynamoDB client holds no
// connections that need releasing.
func (d *DynamoDBKVStore) Close() error {
	d.closed = true
	return nil
}

// DynamoDBFactory creates DynamoDB KV stores.
type DynamoDBFactory struct{}

// Type returns the type identifier for this factory.
func (f *DynamoDBFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBFactory) Validate(config Config) error {
	return validation.ValidateStruct(&config,
		validation.Field(&config.Type, validation.Required, validation.In("dynamodb")),
		validation.Field(&config.Region, validation.Required),
		validation.Field(&config.TableName, validation.Required, validation.Length(3, 255)),
	)
}

// Create creates a new DynamoDB KV store.
func (f *DynamoDBFactory) Create(config Config) (core.KVStore, error) {
	store, err := NewDynamoDBKVStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB KV store: %w", err)
	}
	return store, nil
}

func init() {
	RegisterFactory(&DynamoDBFactory{})
}
