package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"supportchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix     = "presence:"
	presenceOnlineSet     = "presence:online"
	presenceChannelPrefix = "channel:presence:"
)

// mirrorScript writes a presence hash only when the incoming version is newer
// than the stored one, so a late write can never roll presence back. Versions
// are fixed-width decimal strings; Lua numbers are doubles and cannot hold a
// nanosecond version exactly.
var mirrorScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and string.len(current) == string.len(ARGV[1]) and current >= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'status', ARGV[2], 'online', ARGV[3], 'last_seen', ARGV[4], 'alias', ARGV[5])
redis.call('EXPIRE', KEYS[1], ARGV[6])
if ARGV[3] == '1' then
  redis.call('SADD', KEYS[2], ARGV[7])
else
  redis.call('SREM', KEYS[2], ARGV[7])
end
return 1
`)

// MirrorPresence stores snap in Redis and publishes it on the user's presence
// channel. Stale snapshots are ignored. A nil Redis client makes this a no-op.
func (s *Service) MirrorPresence(ctx context.Context, snap models.PresenceSnapshot, ttl time.Duration) error {
	if s.Redis == nil {
		return nil
	}

	online := "0"
	if snap.IsOnline {
		online = "1"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	applied, err := mirrorScript.Run(ctx, s.Redis,
		[]string{presenceKeyPrefix + snap.UserID, presenceOnlineSet},
		versionKey(snap.Version),
		string(snap.Status),
		online,
		snap.LastSeen.UTC().Format(time.RFC3339Nano),
		snap.Alias,
		int(ttl.Seconds()),
		snap.UserID,
	).Int()
	if err != nil {
		return err
	}
	if applied == 0 {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, presenceChannelPrefix+snap.UserID, payload).Err()
}

// OnlineUsers lists users currently marked online in the mirror.
func (s *Service) OnlineUsers(ctx context.Context) ([]string, error) {
	if s.Redis == nil {
		return nil, nil
	}
	return s.Redis.SMembers(ctx, presenceOnlineSet).Result()
}

// versionKey renders v zero-padded to the width of the largest uint64 so that
// string order matches numeric order.
func versionKey(v uint64) string {
	return fmt.Sprintf("%020d", v)
}
