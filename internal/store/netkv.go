package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"greyd/internal/logging"
)

var nlog = logging.For("store.netkv")

// NetKV is the Store over a remote redis-protocol key-value service. It holds
// no local locks: per-command atomicity is the service's, and concurrent
// daemon goroutines are serialized server-side.
//
// The contract carries no cancellation, so each command runs under
// context.Background; latency is bounded instead by the dial/read/write
// timeouts taken from the locator's query parameters.
type NetKV struct {
	client *redis.Client
	addr   string
}

// OpenNetKV connects to the service addressed by the locator. Host and port
// come from the authority section, credentials from the userinfo, the
// database index from the path, and optional dial_timeout / read_timeout /
// write_timeout durations from the query. The connection is verified with a
// ping before the store is returned.
func OpenNetKV(u *url.URL) (*NetKV, error) {
	opts := &redis.Options{Addr: u.Host}
	if u.User != nil {
		opts.Username = u.User.Username()
		opts.Password, _ = u.User.Password()
	}
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		db, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("netkv locator %s: db index %q: %w", u.Redacted(), p, err)
		}
		opts.DB = db
	}
	for param, dst := range map[string]*time.Duration{
		"dial_timeout":  &opts.DialTimeout,
		"read_timeout":  &opts.ReadTimeout,
		"write_timeout": &opts.WriteTimeout,
	} {
		if v := u.Query().Get(param); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("netkv locator %s: %s: %w", u.Redacted(), param, err)
			}
			*dst = d
		}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to netkv store %s: %w", u.Redacted(), err)
	}
	nlog.Info("opened netkv store", "locator", u.Redacted(), "db", opts.DB)
	return &NetKV{client: client, addr: u.Host}, nil
}

func (s *NetKV) Update(key, value string) error {
	if err := s.client.Set(context.Background(), key, value, 0).Err(); err != nil {
		return fmt.Errorf("updating %q: %w", key, err)
	}
	nlog.Debug("updated entry", "key", key, "value", value)
	return nil
}

func (s *NetKV) Get(key string) (string, bool, error) {
	value, err := s.client.Get(context.Background(), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %q: %w", key, err)
	}
	return value, true, nil
}

func (s *NetKV) Delete(key string) error {
	n, err := s.client.Del(context.Background(), key).Result()
	if err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("deleting %q: %w", key, ErrNotFound)
	}
	nlog.Debug("deleted entry", "key", key)
	return nil
}

// Save asks the service to persist its dataset to disk. A service without
// persistence configured reports failure; that failure is returned rather
// than masked, since the caller asked for durability it did not get.
func (s *NetKV) Save() error {
	nlog.Debug("requesting netkv save", "addr", s.addr)
	if err := s.client.Save(context.Background()).Err(); err != nil {
		return fmt.Errorf("saving netkv store %s: %w", s.addr, err)
	}
	return nil
}

// Apply walks the keyspace with the service's cursor enumeration, so the
// full key set is never held in memory. Each key's value is fetched after
// the cursor yields it; keys that vanish between the two are skipped.
func (s *NetKV) Apply(fn TransformFunc) ([]string, error) {
	ctx := context.Background()
	var results []string
	iter := s.client.Scan(ctx, 0, "", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		value, found, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if r, keep := fn(key, value); keep {
			results = append(results, r)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning keys: %w", err)
	}
	return results, nil
}

// Close releases the client's connection pool. Not part of the Store
// contract; exists for tests.
func (s *NetKV) Close() error {
	return s.client.Close()
}
