// Package registry keeps the single authoritative record per task id.
// Sorted views are always computed at read time.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/podushkina/schedmon/internal/task"
)

// Store is implemented by every registry backend.
type Store interface {
	// Insert stores rec, overwriting any record with the same id.
	Insert(ctx context.Context, rec task.Record) error
	// Update merges rec into the stored record, keeping its StartTime, and
	// returns the stored result. Unknown ids are inserted.
	Update(ctx context.Context, rec task.Record) (task.Record, error)
	Get(ctx context.Context, id string) (task.Record, bool, error)
	List(ctx context.Context, opts task.SortOptions) ([]task.Record, error)
	// ReplaceAll discards every stored record and stores records instead.
	ReplaceAll(ctx context.Context, records []task.Record) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Options struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	SQLitePath    string
}

// Open builds the backend selected by opts.Backend.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisTTL)
	case BackendSQLite:
		return NewSQLite(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown registry backend %q", opts.Backend)
	}
}

func sorted(records []task.Record, opts task.SortOptions) []task.Record {
	if opts.SortBy == "" {
		opts.SortBy = task.SortCreatedAt
	}
	if opts.SortOrder == "" {
		opts.SortOrder = task.SortDesc
	}
	task.Sort(records, opts)
	return records
}
