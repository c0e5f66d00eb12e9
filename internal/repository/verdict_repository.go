package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetfox/fleetfox/pkg/domain"

	"github.com/go-redis/redis/v8"
)

// recentVerdictsCap bounds the recency list used by the dashboard view.
const recentVerdictsCap = 200

// VerdictRepository stores pushed verdict events keyed by task id. Save is
// first-writer-wins: a duplicate push for a task that already has a verdict
// reports stored=false and leaves the original untouched.
type VerdictRepository interface {
	Save(ctx context.Context, ev domain.VerdictEvent) (stored bool, err error)
	Get(ctx context.Context, taskID string) (*domain.VerdictEvent, error)
	ListRecent(ctx context.Context, limit int) ([]domain.VerdictEvent, error)
}

type verdictRedisRepo struct {
	rdb *redis.Client
	tz  *time.Location

	// seen short-circuits the duplicate check for tasks this process already
	// ingested. False positives fall through to the HSETNX, which remains the
	// source of truth.
	seen *dedupeBloom
}

func NewVerdictRepository(rdb *redis.Client, tz *time.Location) VerdictRepository {
	return &verdictRedisRepo{
		rdb:  rdb,
		tz:   tz,
		seen: newDedupeBloom(1_000_000, 0.01, 30*time.Minute),
	}
}

func (r *verdictRedisRepo) keyVerdictsHash() string { return "fleetfox:qa:verdicts" }
func (r *verdictRedisRepo) keyRecentList() string   { return "fleetfox:qa:verdicts:recent" }

func (r *verdictRedisRepo) now() time.Time { return time.Now().In(r.tz) }

func (r *verdictRedisRepo) Save(ctx context.Context, ev domain.VerdictEvent) (bool, error) {
	if ev.TaskID == "" {
		return false, fmt.Errorf("verdict without task_id")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	b, _ := json.Marshal(ev)

	if r.seen.MaybeHas(ev.TaskID) {
		exists, err := r.rdb.HExists(ctx, r.keyVerdictsHash(), ev.TaskID).Result()
		if err != nil && err != redis.Nil {
			return false, fmt.Errorf("redis HEXISTS verdict: %w", err)
		}
		if exists {
			return false, nil
		}
	}

	stored, err := r.rdb.HSetNX(ctx, r.keyVerdictsHash(), ev.TaskID, string(b)).Result()
	if err != nil {
		return false, fmt.Errorf("redis HSETNX verdict: %w", err)
	}
	r.seen.Add(ev.TaskID)
	if !stored {
		return false, nil
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.keyRecentList(), ev.TaskID)
	pipe.LTrim(ctx, r.keyRecentList(), 0, recentVerdictsCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis recent list: %w", err)
	}
	return true, nil
}

func (r *verdictRedisRepo) Get(ctx context.Context, taskID string) (*domain.VerdictEvent, error) {
	js, err := r.rdb.HGet(ctx, r.keyVerdictsHash(), taskID).Result()
	if err == redis.Nil || js == "" {
		return nil, fmt.Errorf("not-found")
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET verdict: %w", err)
	}
	var ev domain.VerdictEvent
	if err := json.Unmarshal([]byte(js), &ev); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}
	return &ev, nil
}

func (r *verdictRedisRepo) ListRecent(ctx context.Context, limit int) ([]domain.VerdictEvent, error) {
	if limit <= 0 || limit > recentVerdictsCap {
		limit = 50
	}
	ids, err := r.rdb.LRange(ctx, r.keyRecentList(), 0, int64(limit-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis LRANGE recent: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]domain.VerdictEvent, 0, len(ids))
	for _, id := range ids {
		ev, err := r.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *ev)
	}
	return out, nil
}
