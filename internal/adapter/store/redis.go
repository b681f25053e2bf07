package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"homepulse/internal/config"
	"homepulse/internal/core/domain"
	"homepulse/internal/core/port"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	redisDeviceKeyPrefix  = "homepulse:device:"
	redisDeviceIndexKey   = "homepulse:devices"
	redisSessionKeyPrefix = "homepulse:sessions:"

	redisTxRetries = 5
)

// RedisStore persists device documents as JSON values and session records
// as sorted sets scored by their timestamp. Partial document updates go
// through optimistic WATCH transactions so concurrent writers to different
// concerns of the same device do not lose each other's fields.
type RedisStore struct {
	client *redis.Client
}

var _ port.DeviceStore = (*RedisStore)(nil)
var _ port.UsageStore = (*RedisStore)(nil)

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func deviceKey(id string) string {
	return redisDeviceKeyPrefix + id
}

func sessionKey(deviceID string) string {
	return redisSessionKeyPrefix + deviceID
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Device, error) {
	raw, err := s.client.Get(ctx, deviceKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreFailure, err)
	}
	var device domain.Device
	if err := json.Unmarshal(raw, &device); err != nil {
		return nil, fmt.Errorf("%w: decode device %s: %s", domain.ErrStoreFailure, id, err)
	}
	return &device, nil
}

func (s *RedisStore) List(ctx context.Context, filter port.DeviceFilter) ([]domain.Device, error) {
	ids, err := s.client.SMembers(ctx, redisDeviceIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreFailure, err)
	}
	out := make([]domain.Device, 0, len(ids))
	for _, id := range ids {
		device, err := s.Get(ctx, id)
		if err == domain.ErrDeviceNotFound {
			// index entry outlived the document, skip
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.Type != nil && device.Type != *filter.Type {
			continue
		}
		if filter.ScheduleEnabled != nil && device.AutoSchedule.Enabled != *filter.ScheduleEnabled {
			continue
		}
		out = append(out, *device)
	}
	return out, nil
}

func (s *RedisStore) Upsert(ctx context.Context, device *domain.Device) error {
	raw, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("%w: encode device %s: %s", domain.ErrStoreFailure, device.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, deviceKey(device.ID), raw, 0)
		pipe.SAdd(ctx, redisDeviceIndexKey, device.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStoreFailure, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, deviceKey(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStoreFailure, err)
	}
	if removed == 0 {
		return domain.ErrDeviceNotFound
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, redisDeviceIndexKey, id)
		pipe.Del(ctx, sessionKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStoreFailure, err)
	}
	return nil
}

func (s *RedisStore) AppendUsageEvent(ctx context.Context, id string, event domain.UsageEvent) error {
	return s.mutateDevice(ctx, id, func(d *domain.Device) {
		d.UsageHistory = append(d.UsageHistory, event)
	})
}

func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status domain.DeviceStatus, at time.Time) error {
	return s.mutateDevice(ctx, id, func(d *domain.Device) {
		d.Status = status
		d.UpdatedAt = at
	})
}

func (s *RedisStore) UpdateSettings(ctx context.Context, id string, settings domain.DeviceSettings, at time.Time) error {
	return s.mutateDevice(ctx, id, func(d *domain.Device) {
		d.Settings = settings
		d.UpdatedAt = at
	})
}

func (s *RedisStore) UpdatePredictive(ctx context.Context, id string, predictive domain.PredictiveData, at time.Time) error {
	return s.mutateDevice(ctx, id, func(d *domain.Device) {
		d.Predictive = predictive
		d.UpdatedAt = at
	})
}

// mutateDevice applies fn to the stored document under WATCH, retrying on
// write conflicts.
func (s *RedisStore) mutateDevice(ctx context.Context, id string, fn func(*domain.Device)) error {
	key := deviceKey(id)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return domain.ErrDeviceNotFound
		}
		if err != nil {
			return err
		}
		var device domain.Device
		if err := json.Unmarshal(raw, &device); err != nil {
			return err
		}
		fn(&device)
		updated, err := json.Marshal(&device)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}
	for i := 0; i < redisTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		if err == domain.ErrDeviceNotFound {
			return err
		}
		return fmt.Errorf("%w: %s", domain.ErrStoreFailure, err)
	}
	return fmt.Errorf("%w: update of device %s kept conflicting", domain.ErrStoreFailure, id)
}

func (s *RedisStore) AppendSessionRecord(ctx context.Context, deviceID string, record domain.SessionRecord) (*domain.SessionRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.DeviceID = deviceID
	record.DeriveDurations()
	raw, err := json.Marshal(&record)
	if err != nil {
		return nil, fmt.Errorf("%w: encode session record: %s", domain.ErrStoreFailure, err)
	}
	err = s.client.ZAdd(ctx, sessionKey(deviceID), &redis.Z{
		Score:  float64(record.Timestamp.UnixNano()),
		Member: raw,
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreFailure, err)
	}
	return &record, nil
}

func (s *RedisStore) QueryByDeviceAndRange(ctx context.Context, deviceID string, from, to time.Time) ([]domain.SessionRecord, error) {
	raws, err := s.client.ZRangeByScore(ctx, sessionKey(deviceID), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixNano(), 10),
		Max: strconv.FormatInt(to.UnixNano(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreFailure, err)
	}
	return decodeSessionRecords(raws)
}

func (s *RedisStore) RecentSessionRecords(ctx context.Context, deviceID string, limit int) ([]domain.SessionRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raws, err := s.client.ZRevRange(ctx, sessionKey(deviceID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreFailure, err)
	}
	return decodeSessionRecords(raws)
}

func decodeSessionRecords(raws []string) ([]domain.SessionRecord, error) {
	out := make([]domain.SessionRecord, 0, len(raws))
	for _, raw := range raws {
		var record domain.SessionRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("%w: decode session record: %s", domain.ErrStoreFailure, err)
		}
		out = append(out, record)
	}
	return out, nil
}
