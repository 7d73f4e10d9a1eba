// Package store 保存使用者的飲品歷史。
//
// 記憶體中的有序清單是唯一的資料來源；每次變更都會整份重新序列化並寫入
// Backend。讀取失敗視為沒有資料，寫入失敗只記錄日誌，不回滾記憶體狀態。
package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"sipcheck/internal/core/drink"
	"sipcheck/internal/core/matcher"
	"sipcheck/internal/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventKind 變更類型
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
	EventLoaded  EventKind = "loaded"
)

// Event 變更通知；Saved 表示該次持久化是否成功
type Event struct {
	Kind   EventKind
	Record drink.Record
	Saved  bool
}

// Filter 列表篩選條件，零值代表不篩選
type Filter struct {
	Search string
	Rating *drink.Rating
	Style  string
}

// Store 飲品紀錄集合
type Store struct {
	mu        sync.RWMutex
	backend   Backend
	drinks    []drink.Record
	listeners []func(Event)
	lastSave  error
}

// New 創建空的 Store；呼叫 Load 讀入既有資料
func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		drinks:  []drink.Record{},
	}
}

// Open 創建 Store 並立即載入
func Open(ctx context.Context, backend Backend) *Store {
	s := New(backend)
	s.Load(ctx)
	return s
}

// Subscribe 註冊變更通知；回呼在鎖外同步執行
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load 讀取後端資料；缺少或損毀的資料一律視為空集合
func (s *Store) Load(ctx context.Context) {
	records := s.read(ctx)

	s.mu.Lock()
	s.drinks = records
	listeners := s.listeners
	s.mu.Unlock()

	common.LogInfo("Drink history loaded", zap.Int("count", len(records)))
	notify(listeners, Event{Kind: EventLoaded, Saved: true})
}

func (s *Store) read(ctx context.Context) []drink.Record {
	data, err := s.backend.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoData) {
			common.LogWarn("Failed to read drink history, starting empty",
				zap.Error(common.Wrap(common.ErrPersistenceRead, err)),
			)
		}
		return []drink.Record{}
	}

	records, err := Decode(data)
	if err != nil {
		common.LogWarn("Drink history is corrupt, starting empty",
			zap.Error(common.Wrap(common.ErrPersistenceRead, err)),
			zap.Int("bytes", len(data)),
		)
		return []drink.Record{}
	}
	return records
}

// Save 將目前集合整份寫入後端
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

// saveLocked 呼叫者須持有寫鎖
func (s *Store) saveLocked(ctx context.Context) error {
	data, err := Encode(s.drinks)
	if err == nil {
		err = s.backend.Write(ctx, data)
	}
	if err != nil {
		err = common.Wrap(common.ErrPersistenceWrite, err)
		common.LogError("Failed to save drink history",
			zap.Error(err),
			zap.Int("count", len(s.drinks)),
		)
	}
	s.lastSave = err
	return err
}

// LastSaveError 最近一次寫入的錯誤，成功時為 nil
func (s *Store) LastSaveError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSave
}

// ErrDuplicateID 新增的紀錄 ID 已存在
var ErrDuplicateID = errors.New("drink id already exists")

// Add 插入到最前面（最新優先）並寫入；寫入失敗只記錄日誌
func (s *Store) Add(ctx context.Context, r drink.Record) error {
	if strings.TrimSpace(r.Name) == "" {
		return drink.ErrEmptyName
	}

	s.mu.Lock()
	if s.indexLocked(r.ID) >= 0 {
		s.mu.Unlock()
		return ErrDuplicateID
	}
	s.drinks = append([]drink.Record{r}, s.drinks...)
	err := s.saveLocked(ctx)
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, Event{Kind: EventAdded, Record: r, Saved: err == nil})
	return nil
}

// Update 取代相同 ID 的紀錄，保留原本位置；ID 不存在時回傳 false 且不寫入
func (s *Store) Update(ctx context.Context, r drink.Record) (bool, error) {
	if strings.TrimSpace(r.Name) == "" {
		return false, drink.ErrEmptyName
	}

	s.mu.Lock()
	idx := s.indexLocked(r.ID)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.drinks[idx] = r
	err := s.saveLocked(ctx)
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, Event{Kind: EventUpdated, Record: r, Saved: err == nil})
	return true, nil
}

// Delete 移除指定 ID 的紀錄；不存在時回傳 false
func (s *Store) Delete(ctx context.Context, id uuid.UUID) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.drinks[idx]
	s.drinks = append(s.drinks[:idx:idx], s.drinks[idx+1:]...)
	err := s.saveLocked(ctx)
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, Event{Kind: EventDeleted, Record: removed, Saved: err == nil})
	return true
}

// Get 依 ID 取得紀錄
func (s *Store) Get(id uuid.UUID) (drink.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return drink.Record{}, false
	}
	return s.drinks[idx], true
}

// All 目前順序的複本
func (s *Store) All() []drink.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]drink.Record, len(s.drinks))
	copy(out, s.drinks)
	return out
}

// Recent 前 n 筆
func (s *Store) Recent(n int) []drink.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return []drink.Record{}
	}
	n = min(n, len(s.drinks))
	out := make([]drink.Record, n)
	copy(out, s.drinks[:n])
	return out
}

// Len 紀錄數量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drinks)
}

// FindMatch 以目前集合執行模糊比對
func (s *Store) FindMatch(query string) matcher.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matcher.FindMatch(query, s.drinks)
}

// List 依條件篩選，保留原有順序
func (s *Store) List(f Filter) []drink.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]drink.Record, 0, len(s.drinks))
	for _, r := range s.drinks {
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Name), search) &&
			!strings.Contains(strings.ToLower(r.Brand), search) {
			continue
		}
		if f.Rating != nil && r.Rating != *f.Rating {
			continue
		}
		if f.Style != "" && r.Style != f.Style {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Close 關閉後端
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) indexLocked(id uuid.UUID) int {
	for i, r := range s.drinks {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func notify(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}
