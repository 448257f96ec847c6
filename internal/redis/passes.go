package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"billing/internal/service"
)

const (
	passKeyPrefix  = "billing:pass:"
	passListKey    = "billing:passes"
	passHistoryLen = 100
	passTTL        = 90 * 24 * time.Hour
)

// PassStore keeps the most recent billing pass summaries.
type PassStore struct {
	client *redis.Client
}

// NewPassStore creates a new PassStore.
func NewPassStore(client *redis.Client) *PassStore {
	return &PassStore{client: client}
}

// Record stores a pass summary and trims the history to the newest entries.
func (s *PassStore) Record(ctx context.Context, summary service.PassSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, passKeyPrefix+summary.PassID, data, passTTL)
		pipe.LPush(ctx, passListKey, summary.PassID)
		pipe.LTrim(ctx, passListKey, 0, passHistoryLen-1)
		return nil
	})
	return err
}

// Recent returns up to limit summaries, newest first. Expired entries are skipped.
func (s *PassStore) Recent(ctx context.Context, limit int) ([]service.PassSummary, error) {
	if limit <= 0 || limit > passHistoryLen {
		limit = passHistoryLen
	}

	ids, err := s.client.LRange(ctx, passListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	summaries := make([]service.PassSummary, 0, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = passKeyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var summary service.PassSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
