// Package store persists station records and alert subscriptions in Redis.
//
// All multi-step mutations run as Lua scripts so each operation is a single
// atomic conditional write. There are no locks: two cycles racing on the same
// station both attempt the write and the loser's condition simply fails.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}
