package kvdir

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// putScript writes the forward and reverse keys in one round-trip so a
// reader never observes one without the other.
var putScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// deleteScript removes both keys regardless of whether either exists.
var deleteScript = redis.NewScript(`
redis.call('DEL', KEYS[1])
redis.call('DEL', KEYS[2])
return 1
`)

// refreshScript extends the TTL on both keys only if the forward key is
// still present; it is a no-op otherwise.
var refreshScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('PEXPIRE', KEYS[1], ARGV[1])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
return 1
`)

// RedisDirectory is the Redis-backed Directory implementation.
type RedisDirectory struct {
	client *redis.Client
}

// Options configures the Redis connection backing a RedisDirectory.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisDirectory dials Redis and verifies the connection with a PING.
func NewRedisDirectory(ctx context.Context, opts Options) (*RedisDirectory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,

		PoolSize:     25,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("kvdir: connect to redis: %w", err)
	}

	return &RedisDirectory{client: client}, nil
}

// NewRedisDirectoryFromClient wraps an already-constructed client, letting
// tests point it at a miniredis instance.
func NewRedisDirectoryFromClient(client *redis.Client) *RedisDirectory {
	return &RedisDirectory{client: client}
}

func (d *RedisDirectory) GetSession(ctx context.Context, user, sid string) (Record, bool, error) {
	val, err := d.client.Get(ctx, forwardKey(user, sid)).Result()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("kvdir: get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return Record{}, false, fmt.Errorf("kvdir: decode session record: %w", err)
	}
	return rec, true, nil
}

func (d *RedisDirectory) PutSession(ctx context.Context, user, sid string, rec Record, ttl time.Duration) error {
	fwd, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kvdir: encode session record: %w", err)
	}
	rev, err := json.Marshal(ReverseRecord{UserID: user, SessionID: sid})
	if err != nil {
		return fmt.Errorf("kvdir: encode reverse record: %w", err)
	}

	keys := []string{forwardKey(user, sid), reverseKey(rec.ContainerID)}
	ttlMs := ttl.Milliseconds()
	if err := putScript.Run(ctx, d.client, keys, string(fwd), string(rev), ttlMs).Err(); err != nil {
		return fmt.Errorf("kvdir: put session: %w", err)
	}
	return nil
}

func (d *RedisDirectory) RefreshTTL(ctx context.Context, user, sid string, ttl time.Duration) error {
	rec, ok, err := d.GetSession(ctx, user, sid)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	keys := []string{forwardKey(user, sid), reverseKey(rec.ContainerID)}
	if err := refreshScript.Run(ctx, d.client, keys, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("kvdir: refresh ttl: %w", err)
	}
	return nil
}

func (d *RedisDirectory) DeleteSession(ctx context.Context, user, sid string) error {
	rec, ok, err := d.GetSession(ctx, user, sid)
	if err != nil {
		return err
	}

	var revKey string
	if ok {
		revKey = reverseKey(rec.ContainerID)
	} else {
		// Nothing to resolve the container id from; clear the forward key
		// only, using a harmless placeholder for the unused second key.
		revKey = reverseKey("")
	}

	keys := []string{forwardKey(user, sid), revKey}
	if err := deleteScript.Run(ctx, d.client, keys).Err(); err != nil {
		return fmt.Errorf("kvdir: delete session: %w", err)
	}
	return nil
}

func (d *RedisDirectory) GetReverse(ctx context.Context, containerID string) (ReverseRecord, bool, error) {
	val, err := d.client.Get(ctx, reverseKey(containerID)).Result()
	if err == redis.Nil {
		return ReverseRecord{}, false, nil
	}
	if err != nil {
		return ReverseRecord{}, false, fmt.Errorf("kvdir: get reverse: %w", err)
	}

	var rec ReverseRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return ReverseRecord{}, false, fmt.Errorf("kvdir: decode reverse record: %w", err)
	}
	return rec, true, nil
}

func (d *RedisDirectory) Close() error {
	return d.client.Close()
}
