package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis is an in-memory RedisClient. Setting err makes every call fail.
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	sets    map[string]map[string]struct{}
	ttls    map[string]time.Duration
	err     error
	getErr  error
	delErr  error
	delKeys [][]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values: map[string]string{},
		sets:   map[string]map[string]struct{}{},
		ttls:   map[string]time.Duration{},
	}
}

func (f *fakeRedis) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return nil, redis.Nil
	}
	return []byte(v), nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.values[key] = string(payload)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delKeys = append(f.delKeys, append([]string(nil), keys...))
	if f.err != nil {
		return f.err
	}
	if f.delErr != nil {
		return f.delErr
	}
	for _, k := range keys {
		delete(f.values, k)
		delete(f.sets, k)
		delete(f.ttls, k)
	}
	return nil
}

func (f *fakeRedis) IndexAdd(ctx context.Context, key, member string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	set, ok := f.sets[key]
	if !ok {
		set = map[string]struct{}{}
		f.sets[key] = set
	}
	set[member] = struct{}{}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) IndexRemove(ctx context.Context, key, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.sets[key], member)
	return nil
}

func (f *fakeRedis) IndexMembers(ctx context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.membersLocked(key), nil
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

func (f *fakeRedis) setMembers(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.membersLocked(key)
}

func (f *fakeRedis) membersLocked(key string) []string {
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
