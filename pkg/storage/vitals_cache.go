package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/common/models"
)

// ErrCacheMiss is returned when no reading is cached for the patient.
var ErrCacheMiss = errors.New("vitals cache miss")

// VitalsCache keeps the newest reading per patient in Redis.
type VitalsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewVitalsCache(client *redis.Client, ttl time.Duration) *VitalsCache {
	return &VitalsCache{client: client, ttl: ttl}
}

func LatestVitalsKey(patientID int64) string {
	return fmt.Sprintf("vitals:%d:latest", patientID)
}

func (c *VitalsCache) PutLatest(ctx context.Context, vital models.VitalSign) error {
	data, err := json.Marshal(vital)
	if err != nil {
		return fmt.Errorf("failed to marshal vital sign: %w", err)
	}
	key := LatestVitalsKey(vital.PatientID)
	logger.Log.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Debug("Caching latest vitals")
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *VitalsCache) GetLatest(ctx context.Context, patientID int64) (*models.VitalSign, error) {
	data, err := c.client.Get(ctx, LatestVitalsKey(patientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read latest vitals: %w", err)
	}
	var vital models.VitalSign
	if err := json.Unmarshal(data, &vital); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest vitals: %w", err)
	}
	return &vital, nil
}

// Evict drops the cached reading, used when a patient is deleted.
func (c *VitalsCache) Evict(ctx context.Context, patientIDs ...int64) error {
	if len(patientIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(patientIDs))
	for _, id := range patientIDs {
		keys = append(keys, LatestVitalsKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
