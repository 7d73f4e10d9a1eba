package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"sipcheck/internal/infrastructure/config"
	"sipcheck/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrClosed 隊列已關閉
var ErrClosed = errors.New("queue manager is closed")

// State 單一請求的狀態
type State int32

const (
	StateIdle State = iota
	StateInFlight
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInFlight:
		return "in_flight"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Job 交給 worker 執行的工作
type Job func(ctx context.Context) (any, error)

// Task 一次提交的請求；狀態只會 Idle → InFlight → Succeeded | Failed
type Task struct {
	ctx   context.Context
	job   Job
	state atomic.Int32
	done  chan struct{}

	result any
	err    error
}

// State 目前狀態
func (t *Task) State() State {
	return State(t.state.Load())
}

// Done 完成時關閉
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait 等待結果；ctx 取消時立即返回，工作本身不會被中止，結果直接丟棄
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run 執行工作；job panic 時轉為 ErrInternalError，Task 以 Failed 結束
func (t *Task) run() {
	t.state.Store(int32(StateInFlight))
	defer func() {
		if rec := recover(); rec != nil {
			common.LogError("Queued job panicked",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			t.result = nil
			t.err = common.Wrap(common.ErrInternalError, fmt.Errorf("job panicked: %v", rec))
		}
		if t.err != nil {
			t.state.Store(int32(StateFailed))
		} else {
			t.state.Store(int32(StateSucceeded))
		}
		close(t.done)
	}()

	t.result, t.err = t.job(t.ctx)
}

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	InFlight       int64 `json:"in_flight"`
	ProcessedCount int64 `json:"processed_count"`
	FailedCount    int64 `json:"failed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 固定數量 worker 的請求隊列
type Manager struct {
	workers   int
	maxSize   int
	queue     chan *Task
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	inFlight  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// NewManager 創建並啟動隊列管理器
func NewManager(cfg config.QueueConfig) *Manager {
	workers := max(cfg.Workers, 1)
	maxSize := max(cfg.MaxSize, 1)

	m := &Manager{
		workers: workers,
		maxSize: maxSize,
		queue:   make(chan *Task, maxSize),
		done:    make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}

	common.LogInfo("Request queue started",
		zap.Int("workers", workers),
		zap.Int("max_queue_size", maxSize),
	)
	return m
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case task := <-m.queue:
			m.inFlight.Add(1)
			task.run()
			m.inFlight.Add(-1)
			m.processed.Add(1)
			if task.err != nil {
				m.failed.Add(1)
			}
		}
	}
}

// Submit 將工作加入隊列；隊列滿時立即回傳 ErrQueueFull。
// ctx 會傳給工作本身。
func (m *Manager) Submit(ctx context.Context, job Job) (*Task, error) {
	task := &Task{
		ctx:  context.WithoutCancel(ctx),
		job:  job,
		done: make(chan struct{}),
	}

	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}

	select {
	case m.queue <- task:
		common.LogDebug("Request enqueued",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.maxSize),
		)
		return task, nil
	default:
		common.LogWarn("Request queue is full",
			zap.Int("max_queue_size", m.maxSize),
		)
		return nil, common.ErrQueueFull
	}
}

// Do 提交並等待結果
func (m *Manager) Do(ctx context.Context, job Job) (any, error) {
	task, err := m.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	return task.Wait(ctx)
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		InFlight:       m.inFlight.Load(),
		ProcessedCount: m.processed.Load(),
		FailedCount:    m.failed.Load(),
		MaxQueueSize:   m.maxSize,
		Workers:        m.workers,
	}
}

// Close 停止 worker；尚未開始的工作不會執行
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}
