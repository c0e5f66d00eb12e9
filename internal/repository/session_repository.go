package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetfox/fleetfox/pkg/domain"

	"github.com/go-redis/redis/v8"
)

// SessionRepository persists upload sessions as single JSON blobs. A session
// that was never saved and a session whose blob failed to parse both load as
// an empty session; repository errors are reserved for Redis being down.
type SessionRepository interface {
	Load(ctx context.Context, sessionID string) (*domain.UploadSession, error)
	Save(ctx context.Context, session *domain.UploadSession) error
	Delete(ctx context.Context, sessionID string) error

	// BindTask records which session a submission task was built from, so an
	// async verdict carrying only the task id can find its way back.
	BindTask(ctx context.Context, taskID, sessionID string) error
	TaskSession(ctx context.Context, taskID string) (string, error)
}

type sessionRedisRepo struct {
	rdb *redis.Client
	tz  *time.Location
}

func NewSessionRepository(rdb *redis.Client, tz *time.Location) SessionRepository {
	return &sessionRedisRepo{rdb: rdb, tz: tz}
}

// sessionRetention bounds how long an abandoned session lingers.
const sessionRetention = 7 * 24 * time.Hour

const taskBindRetention = 24 * time.Hour

func (r *sessionRedisRepo) keySession(id string) string {
	return fmt.Sprintf("fleetfox:qa:session:%s", id)
}

func (r *sessionRedisRepo) keyTaskBind(taskID string) string {
	return fmt.Sprintf("fleetfox:qa:task:%s", taskID)
}

func (r *sessionRedisRepo) Load(ctx context.Context, sessionID string) (*domain.UploadSession, error) {
	js, err := r.rdb.Get(ctx, r.keySession(sessionID)).Result()
	if err == redis.Nil || js == "" {
		return domain.NewUploadSession(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET session: %w", err)
	}
	var s domain.UploadSession
	if err := json.Unmarshal([]byte(js), &s); err != nil {
		// A corrupt blob is unrecoverable; drop it and start the session over
		// rather than failing every operation on it from now on.
		_ = r.rdb.Del(ctx, r.keySession(sessionID)).Err()
		return domain.NewUploadSession(sessionID), nil
	}
	s.ID = sessionID
	if s.Images == nil {
		s.Images = make(map[domain.PhotoSlot]domain.UploadedImageRecord)
	}
	return &s, nil
}

func (r *sessionRedisRepo) Save(ctx context.Context, session *domain.UploadSession) error {
	b, _ := json.Marshal(session)
	if err := r.rdb.Set(ctx, r.keySession(session.ID), string(b), sessionRetention).Err(); err != nil {
		return fmt.Errorf("redis SET session: %w", err)
	}
	return nil
}

func (r *sessionRedisRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.keySession(sessionID)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis DEL session: %w", err)
	}
	return nil
}

func (r *sessionRedisRepo) BindTask(ctx context.Context, taskID, sessionID string) error {
	if err := r.rdb.Set(ctx, r.keyTaskBind(taskID), sessionID, taskBindRetention).Err(); err != nil {
		return fmt.Errorf("redis SET task binding: %w", err)
	}
	return nil
}

func (r *sessionRedisRepo) TaskSession(ctx context.Context, taskID string) (string, error) {
	id, err := r.rdb.Get(ctx, r.keyTaskBind(taskID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis GET task binding: %w", err)
	}
	return id, nil
}
