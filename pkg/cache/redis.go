package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Redis stores snapshots as JSON values so several instances share one cache.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	logger    ectologger.Logger
}

var _ Store = (*Redis)(nil)

func NewRedis(client *redis.Client, keyPrefix string, logger ectologger.Logger) *Redis {
	if keyPrefix == "" {
		keyPrefix = "fern:snapshot:"
	}
	return &Redis{client: client, keyPrefix: keyPrefix, logger: logger}
}

func (r *Redis) key(kind models.Kind) string {
	return r.keyPrefix + string(kind)
}

func (r *Redis) pendingKey(kind models.Kind) string {
	return r.keyPrefix + "pending:" + string(kind)
}

func (r *Redis) Read(ctx context.Context, kind models.Kind) (set models.RecordSet, ok bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "RedisCache.Read")
	defer span.End()
	defer func() { observe(DriverRedis, "read", err) }()

	payload, err := r.client.Get(ctx, r.key(kind))
	if redis.IsNil(err) {
		return models.RecordSet{}, false, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to read %s snapshot", kind)
		return models.RecordSet{}, false, fmt.Errorf("read %s snapshot: %w", kind, err)
	}

	if err = json.Unmarshal(payload, &set); err != nil {
		return models.RecordSet{}, false, fmt.Errorf("decode %s snapshot: %w", kind, err)
	}
	return set, true, nil
}

func (r *Redis) Write(ctx context.Context, set models.RecordSet) (err error) {
	ctx, span := tracing.StartSpan(ctx, "RedisCache.Write")
	defer span.End()
	defer func() { observe(DriverRedis, "write", err) }()

	if err = validate(set); err != nil {
		return err
	}
	if set.Records == nil {
		set.Records = []models.Record{}
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", set.Kind, err)
	}

	if err = r.client.Set(ctx, r.key(set.Kind), payload, 0); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to write %s snapshot", set.Kind)
		return fmt.Errorf("write %s snapshot: %w", set.Kind, err)
	}
	return nil
}

func (r *Redis) SetPending(ctx context.Context, kind models.Kind, pending bool) (err error) {
	ctx, span := tracing.StartSpan(ctx, "RedisCache.SetPending")
	defer span.End()
	defer func() { observe(DriverRedis, "set_pending", err) }()

	if pending {
		err = r.client.Set(ctx, r.pendingKey(kind), []byte("1"), 0)
	} else {
		err = r.client.Del(ctx, r.pendingKey(kind))
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to update %s pending mark", kind)
		return fmt.Errorf("update %s pending mark: %w", kind, err)
	}
	return nil
}

func (r *Redis) Pending(ctx context.Context, kind models.Kind) (bool, error) {
	_, err := r.client.Get(ctx, r.pendingKey(kind))
	if redis.IsNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s pending mark: %w", kind, err)
	}
	return true, nil
}
