package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-redis/redis/v8"
)

// ErrNoData 後端尚無任何已儲存資料
var ErrNoData = errors.New("no persisted data")

// Backend 以位元組為單位的持久化邊界，整份讀寫
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// FileBackend 單一 JSON 檔案；寫入時先寫暫存檔再 rename
type FileBackend struct {
	path string
}

// NewFileBackend 創建檔案後端
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Read 讀取整份檔案
func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoData
	}
	return data, err
}

// Write 原子寫入整份檔案
func (b *FileBackend) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

// Close 無資源需釋放
func (b *FileBackend) Close() error {
	return nil
}

// RedisBackend 將整份資料存於單一 key
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend 創建 Redis 後端並測試連線
func NewRedisBackend(ctx context.Context, addr string, db int, key string) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBackend{client: client, key: key}, nil
}

// Read 讀取 key
func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if err == redis.Nil {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drinks: %w", err)
	}
	return data, nil
}

// Write 覆寫 key
func (b *RedisBackend) Write(ctx context.Context, data []byte) error {
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set drinks: %w", err)
	}
	return nil
}

// Close 關閉連線
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// MemoryBackend 只存在於行程記憶體
type MemoryBackend struct {
	mu       sync.Mutex
	data     []byte
	writeErr error
}

// NewMemoryBackend 創建記憶體後端，可帶初始資料
func NewMemoryBackend(initial []byte) *MemoryBackend {
	return &MemoryBackend{data: initial}
}

// Read 回傳目前資料的複本
func (b *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, ErrNoData
	}
	return append([]byte(nil), b.data...), nil
}

// Write 覆寫資料
func (b *MemoryBackend) Write(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.data = append([]byte(nil), data...)
	return nil
}

// Close 無資源需釋放
func (b *MemoryBackend) Close() error {
	return nil
}

// SetWriteErr 之後的 Write 皆回傳 err；nil 恢復正常
func (b *MemoryBackend) SetWriteErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}
