package counter

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	id "rollcall/pkg/domain"
)

// Redis implements ports.CounterStore on Redis for multi-process deployments
// that admit against shared occupancy without a relational store in the path.
//
// The compare-and-increment runs as a Lua script, which Redis executes
// atomically, so the classic read-then-write over-admission race cannot occur
// across processes.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// admitScript increments KEYS[1] only while below ARGV[1]. A negative limit
// means unlimited. Returns {admitted, current}.
var admitScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if limit >= 0 and current >= limit then
    return {0, current}
end
current = redis.call('INCR', KEYS[1])
return {1, current}
`)

// releaseScript decrements KEYS[1], clamped at zero.
var releaseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current <= 0 then
    redis.call('SET', KEYS[1], '0')
    return 0
end
return redis.call('DECR', KEYS[1])
`)

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, keyPrefix: "occupancy:"}
}

func (s *Redis) key(activityID id.ActivityID) string {
	return s.keyPrefix + activityID.String()
}

func (s *Redis) TryAdmit(ctx context.Context, activityID id.ActivityID, max *int) (int, bool, error) {
	limit := -1
	if max != nil {
		limit = *max
	}
	res, err := admitScript.Run(ctx, s.client, []string{s.key(activityID)}, limit).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("admit: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("admit: unexpected script reply of length %d", len(res))
	}
	return int(res[1]), res[0] == 1, nil
}

func (s *Redis) Release(ctx context.Context, activityID id.ActivityID) (int, error) {
	current, err := releaseScript.Run(ctx, s.client, []string{s.key(activityID)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("release: %w", err)
	}
	return int(current), nil
}

func (s *Redis) Current(ctx context.Context, activityID id.ActivityID) (int, error) {
	current, err := s.client.Get(ctx, s.key(activityID)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return current, nil
}

func (s *Redis) Tracked(ctx context.Context) ([]id.ActivityID, error) {
	var ids []id.ActivityID
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		activityID, err := id.ParseActivityID(strings.TrimPrefix(iter.Val(), s.keyPrefix))
		if err != nil {
			return nil, err
		}
		ids = append(ids, activityID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan counters: %w", err)
	}
	return ids, nil
}

func (s *Redis) Reset(ctx context.Context, activityID id.ActivityID, current int) error {
	if err := s.client.Set(ctx, s.key(activityID), current, 0).Err(); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}
