package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"
)

// Flags live under their own redis namespace so a FLUSHDB-free cleanup can
// target them with a prefix scan.
const (
	indexKey    = "gateway:flags"
	valuePrefix = "gateway:flag:"
)

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// Store keeps runtime feature flags in redis, one value key per flag plus a
// set indexing the known keys.
type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

// ValidateKey rejects keys that would collide with the redis key scheme
func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("invalid flag key")
	}
	return nil
}

// Upsert writes the flag value and registers the key in the index atomically
func (s *Store) Upsert(ctx context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	flag := &Flag{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("marshal flag: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, valuePrefix+key, b, 0)
	pipe.SAdd(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert flag: %w", err)
	}

	return flag, nil
}

func (s *Store) Get(ctx context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, valuePrefix+key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}
	return decodeFlag(val)
}

// List returns every indexed flag. Index entries whose value key has gone
// missing are silently dropped rather than failing the listing.
func (s *Store) List(ctx context.Context) ([]*Flag, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags index: %w", err)
	}

	out := make([]*Flag, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	valueKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if ValidateKey(k) == nil {
			valueKeys = append(valueKeys, valuePrefix+k)
		}
	}
	if len(valueKeys) == 0 {
		return out, nil
	}

	vals, err := s.client.MGet(ctx, valueKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget flags: %w", err)
	}

	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		f, err := decodeFlag(raw)
		if err != nil {
			continue
		}
		out = append(out, f)
	}

	return out, nil
}

// Enabled reports a flag's value, falling back to def when the flag has
// never been set. Used to gate optional gateway features at request time.
func (s *Store) Enabled(ctx context.Context, key string, def bool) bool {
	f, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return f.Value
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, valuePrefix+key)
	pipe.SRem(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}

	return nil
}

func decodeFlag(raw string) (*Flag, error) {
	var f Flag
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("unmarshal flag: %w", err)
	}
	return &f, nil
}
