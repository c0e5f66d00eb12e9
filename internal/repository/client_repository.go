package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
)

// ClientRepository holds the set of client codes selectable on submission.
// Seeded at boot from config; SMEMBERS order is undefined so listing sorts.
type ClientRepository interface {
	Seed(ctx context.Context, clients []string) error
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, client string) (bool, error)
}

type clientRedisRepo struct {
	rdb *redis.Client
}

func NewClientRepository(rdb *redis.Client) ClientRepository {
	return &clientRedisRepo{rdb: rdb}
}

func (r *clientRedisRepo) keyClients() string { return "fleetfox:qa:clients" }

func (r *clientRedisRepo) Seed(ctx context.Context, clients []string) error {
	members := make([]interface{}, 0, len(clients))
	for _, c := range clients {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		members = append(members, c)
	}
	if len(members) == 0 {
		return nil
	}
	if err := r.rdb.SAdd(ctx, r.keyClients(), members...).Err(); err != nil {
		return fmt.Errorf("redis SADD clients: %w", err)
	}
	return nil
}

func (r *clientRedisRepo) List(ctx context.Context) ([]string, error) {
	clients, err := r.rdb.SMembers(ctx, r.keyClients()).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis SMEMBERS clients: %w", err)
	}
	sort.Strings(clients)
	return clients, nil
}

func (r *clientRedisRepo) Exists(ctx context.Context, client string) (bool, error) {
	ok, err := r.rdb.SIsMember(ctx, r.keyClients(), client).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("redis SISMEMBER clients: %w", err)
	}
	return ok, nil
}
