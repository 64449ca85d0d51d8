package redisengine

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

const (
	logMsgRedisCallFailed   = "redis call failed"
	logMsgKeyAccepted       = "key accepted for processing"
	logMsgDuplicateDetected = "duplicate key detected"
	logMsgKeyRemoved        = "key removed by administrative request"
	logAttrError            = "error"
	logAttrKey              = "idempotency_key"
	logAttrCommand          = "command"
	cmdSetNX                = "setnx"
	cmdExists               = "exists"
	cmdDel                  = "del"
)

// ErrNegativeTTL is returned when a negative TTL is supplied to WithTTL.
var ErrNegativeTTL = errors.New("negative ttl supplied")

// storedRecord is the JSON shape persisted as the Redis value.
type storedRecord struct {
	Key        string    `json:"key"`
	AcceptedAt time.Time `json:"accepted_at"`
	Partition  string    `json:"partition,omitempty"`
}

// KeyStore implements the dedup.KeyStore contract on top of Redis.
type KeyStore struct {
	client           redis.UniversalClient
	keyPrefix        string
	ttl              time.Duration
	logger           dedup.Logger
	contextualLogger dedup.ContextualLogger
}

// Option defines a functional option for configuring a KeyStore.
type Option func(*KeyStore) error

// WithKeyPrefix prepends prefix to every stored key (useful for shared Redis instances).
func WithKeyPrefix(prefix string) Option {
	return func(ks *KeyStore) error {
		ks.keyPrefix = prefix
		return nil
	}
}

// WithTTL bounds the lifetime of stored records. Zero (the default) means records
// never expire. The TTL must outlive the caller's retry horizon.
func WithTTL(ttl time.Duration) Option {
	return func(ks *KeyStore) error {
		if ttl < 0 {
			return ErrNegativeTTL
		}

		ks.ttl = ttl

		return nil
	}
}

// WithLogger sets the logger for the KeyStore.
func WithLogger(logger dedup.Logger) Option {
	return func(ks *KeyStore) error {
		ks.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the KeyStore.
// When both loggers are configured, the contextual logger wins.
func WithContextualLogger(logger dedup.ContextualLogger) Option {
	return func(ks *KeyStore) error {
		ks.contextualLogger = logger
		return nil
	}
}

// NewKeyStore creates a new KeyStore using the given Redis client with optional configuration.
func NewKeyStore(client redis.UniversalClient, options ...Option) (*KeyStore, error) {
	if client == nil {
		return nil, dedup.ErrNilDatabaseConnection
	}

	ks := &KeyStore{client: client}

	for _, option := range options {
		if err := option(ks); err != nil {
			return nil, err
		}
	}

	return ks, nil
}

// InsertIfAbsent atomically checks for existence of the record's key and, if absent,
// inserts the record, in one indivisible SETNX call.
//
// Returns true if the insert happened (the key was new), false if the key already
// existed (duplicate). Failures to reach Redis are reported as errors wrapping
// dedup.ErrStoreUnavailable and carry no duplicate/non-duplicate verdict.
func (ks *KeyStore) InsertIfAbsent(ctx context.Context, record dedup.ProcessingRecord) (bool, error) {
	if record.Key.IsEmpty() {
		return false, dedup.ErrEmptyIdempotencyKey
	}

	payload, marshalErr := jsoniter.ConfigFastest.Marshal(storedRecord{
		Key:        record.Key.String(),
		AcceptedAt: record.AcceptedAt,
		Partition:  string(record.Partition),
	})
	if marshalErr != nil {
		return false, errors.Join(dedup.ErrBuildingQueryFailed, marshalErr)
	}

	inserted, setErr := ks.client.SetNX(ctx, ks.storeKey(record.Key), payload, ks.ttl).Result()
	if setErr != nil {
		ks.logError(ctx, logMsgRedisCallFailed, setErr, logAttrCommand, cmdSetNX, logAttrKey, record.Key.String())
		return false, errors.Join(dedup.ErrStoreUnavailable, setErr)
	}

	if inserted {
		ks.logOperation(ctx, logMsgKeyAccepted, logAttrKey, record.Key.String())
	} else {
		ks.logOperation(ctx, logMsgDuplicateDetected, logAttrKey, record.Key.String())
	}

	return inserted, nil
}

// Contains reports whether a record exists for the key. Diagnostic use only.
func (ks *KeyStore) Contains(ctx context.Context, key dedup.IdempotencyKey) (bool, error) {
	if key.IsEmpty() {
		return false, dedup.ErrEmptyIdempotencyKey
	}

	found, existsErr := ks.client.Exists(ctx, ks.storeKey(key)).Result()
	if existsErr != nil {
		ks.logError(ctx, logMsgRedisCallFailed, existsErr, logAttrCommand, cmdExists, logAttrKey, key.String())
		return false, errors.Join(dedup.ErrStoreUnavailable, existsErr)
	}

	return found == 1, nil
}

// Remove deletes the record for the key. Reserved for administrative reconciliation.
func (ks *KeyStore) Remove(ctx context.Context, key dedup.IdempotencyKey) error {
	if key.IsEmpty() {
		return dedup.ErrEmptyIdempotencyKey
	}

	if delErr := ks.client.Del(ctx, ks.storeKey(key)).Err(); delErr != nil {
		ks.logError(ctx, logMsgRedisCallFailed, delErr, logAttrCommand, cmdDel, logAttrKey, key.String())
		return errors.Join(dedup.ErrStoreUnavailable, delErr)
	}

	ks.logOperation(ctx, logMsgKeyRemoved, logAttrKey, key.String())

	return nil
}

func (ks *KeyStore) storeKey(key dedup.IdempotencyKey) string {
	return ks.keyPrefix + key.String()
}

func (ks *KeyStore) logOperation(ctx context.Context, msg string, args ...any) {
	if ks.contextualLogger != nil {
		ks.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if ks.logger != nil {
		ks.logger.Info(msg, args...)
	}
}

func (ks *KeyStore) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if ks.contextualLogger != nil {
		ks.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if ks.logger != nil {
		ks.logger.Error(msg, allArgs...)
	}
}
