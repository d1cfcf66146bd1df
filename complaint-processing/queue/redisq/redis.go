// Package redisq is a task broker on Redis lists with results kept in a
// separate Redis store.
//
// Submit LPUSHes the envelope onto the queue list. Workers BRPOP it, or
// BRPOPLPUSH it onto a processing list when acks are late, run it and store
// the result under a TTL before signalling a per-task done list that waiters
// block on.
package redisq

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Dial connects to a redis:// URL and checks the server is reachable
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}
	return client, nil
}

type keys struct {
	queue string
}

func (k keys) processing() string { return k.queue + ":processing" }

func (k keys) result(id string) string { return k.queue + ":result:" + id }

func (k keys) done(id string) string { return k.queue + ":done:" + id }
