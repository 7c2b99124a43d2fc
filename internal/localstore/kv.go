package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-redis/redis/v8"
)

// KV is an origin-scoped string key/value store
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// FileKV keeps every origin's keys in one JSON file
type FileKV struct {
	path   string
	origin string
	mu     sync.Mutex
}

// NewFileKV returns a store for origin backed by the file at path.
// The file is created on first write.
func NewFileKV(path, origin string) *FileKV {
	return &FileKV{path: path, origin: origin}
}

func (f *FileKV) load() (map[string]map[string]string, error) {
	all := map[string]map[string]string{}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(raw) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return all, nil
}

func (f *FileKV) save(all map[string]map[string]string) error {
	raw, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".localstore-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := all[f.origin][key]
	return v, ok, nil
}

func (f *FileKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.load()
	if err != nil {
		return err
	}
	if all[f.origin] == nil {
		all[f.origin] = map[string]string{}
	}
	all[f.origin][key] = value
	return f.save(all)
}

func (f *FileKV) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := all[f.origin][key]; !ok {
		return nil
	}
	delete(all[f.origin], key)
	return f.save(all)
}

// RedisKV stores keys as "<origin>:<key>" in Redis
type RedisKV struct {
	rdb    *redis.Client
	origin string
}

// NewRedisKV returns a store for origin on the given client
func NewRedisKV(rdb *redis.Client, origin string) *RedisKV {
	return &RedisKV{rdb: rdb, origin: origin}
}

func (r *RedisKV) key(k string) string {
	return r.origin + ":" + k
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
