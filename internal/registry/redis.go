package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/podushkina/schedmon/internal/task"
)

const (
	indexKey  = "schedmon:tasks"
	recPrefix = "schedmon:task:"
)

// Redis keeps records as JSON values and tracks ids in a set so the gallery
// survives restarts and can be shared between CLI runs.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Redis{client: client, ttl: ttl}, nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) Insert(ctx context.Context, rec task.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recPrefix+rec.ID, data, s.ttl)
	pipe.SAdd(ctx, indexKey, rec.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Redis) Update(ctx context.Context, rec task.Record) (task.Record, error) {
	prev, ok, err := s.Get(ctx, rec.ID)
	if err != nil {
		return task.Record{}, err
	}
	if ok {
		rec = prev.Merge(rec)
	}
	if err := s.Insert(ctx, rec); err != nil {
		return task.Record{}, err
	}
	return rec, nil
}

func (s *Redis) Get(ctx context.Context, id string) (task.Record, bool, error) {
	data, err := s.client.Get(ctx, recPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return task.Record{}, false, nil
		}
		return task.Record{}, false, fmt.Errorf("get task: %w", err)
	}

	var rec task.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return task.Record{}, false, fmt.Errorf("unmarshal task: %w", err)
	}
	return rec, true, nil
}

func (s *Redis) List(ctx context.Context, opts task.SortOptions) ([]task.Record, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	if len(ids) == 0 {
		return []task.Record{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, recPrefix+id)
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}

	records := make([]task.Record, 0, len(ids))
	var expired []any
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			expired = append(expired, ids[i])
			continue
		}

		var rec task.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}

	if len(expired) > 0 {
		s.client.SRem(ctx, indexKey, expired...)
	}

	return sorted(records, opts), nil
}

func (s *Redis) ReplaceAll(ctx context.Context, records []task.Record) error {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, recPrefix+id)
	}
	pipe.Del(ctx, indexKey)

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			pipe.Discard()
			return fmt.Errorf("marshal task: %w", err)
		}
		pipe.Set(ctx, recPrefix+rec.ID, data, s.ttl)
		pipe.SAdd(ctx, indexKey, rec.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace tasks: %w", err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context) error {
	return s.ReplaceAll(ctx, nil)
}

func (s *Redis) Len(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return int(n), nil
}
