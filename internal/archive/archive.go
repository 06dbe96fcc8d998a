// Package archive persists finalized bookings outside the room's memory so a
// restarted server does not resell paid seats. Redis is optional: rooms run
// memory-only when no client is configured.
package archive

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Archive records booked seat status ids per room.
type Archive interface {
	MarkBooked(ctx context.Context, roomID string, statusIDs []int64) error
	Booked(ctx context.Context, roomID string) ([]int64, error)
}

type Redis struct {
	rdb *redis.Client
}

// NewRedis connects and pings with a short timeout. Callers should treat an
// error as "run without an archive", not as fatal.
func NewRedis(addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("archive: ping %s: %w", addr, err)
	}
	return &Redis{rdb: rdb}, nil
}

func key(roomID string) string { return "seatlink:booked:" + roomID }

func (r *Redis) MarkBooked(ctx context.Context, roomID string, statusIDs []int64) error {
	if len(statusIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(statusIDs))
	for i, id := range statusIDs {
		members[i] = strconv.FormatInt(id, 10)
	}
	if err := r.rdb.SAdd(ctx, key(roomID), members...).Err(); err != nil {
		return fmt.Errorf("archive: mark booked for %s: %w", roomID, err)
	}
	return nil
}

func (r *Redis) Booked(ctx context.Context, roomID string) ([]int64, error) {
	raw, err := r.rdb.SMembers(ctx, key(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("archive: load booked for %s: %w", roomID, err)
	}
	ids := make([]int64, 0, len(raw))
	for _, m := range raw {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
