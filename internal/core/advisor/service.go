// Package advisor 根據飲品歷史向語言模型取得建議，並辨識酒標圖片。
package advisor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sipcheck/internal/core/ai/image"
	"sipcheck/internal/core/ai/provider"
	"sipcheck/internal/core/drink"
	"sipcheck/internal/core/matcher"
	"sipcheck/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	defaultMaxTokens   = 200
	maxHistoryLimit    = 20
	defaultUnknownName = "Unknown Beer"
)

// History 推薦流程需要的紀錄來源
type History interface {
	All() []drink.Record
	FindMatch(query string) matcher.Result
}

// Config 推薦服務設定
type Config struct {
	APIKey       string
	MaxTokens    int
	HistoryLimit int
	UnknownName  string
}

// Service 推薦流程。憑證與設定由 mu 保護；每個請求先取快照，
// 之後的網路呼叫不再觸碰共享狀態，可同時進行多個請求。
type Service struct {
	provider provider.Provider
	images   *image.Processor

	mu           sync.RWMutex
	apiKey       string
	maxTokens    int
	historyLimit int
	unknownName  string
}

// NewService 創建推薦服務
func NewService(p provider.Provider, images *image.Processor, cfg Config) *Service {
	s := &Service{
		provider: p,
		images:   images,
	}
	s.apply(cfg)
	return s
}

func (s *Service) apply(cfg Config) {
	s.apiKey = strings.TrimSpace(cfg.APIKey)
	s.maxTokens = cfg.MaxTokens
	if s.maxTokens <= 0 {
		s.maxTokens = defaultMaxTokens
	}
	s.historyLimit = cfg.HistoryLimit
	if s.historyLimit <= 0 || s.historyLimit > maxHistoryLimit {
		s.historyLimit = maxHistoryLimit
	}
	s.unknownName = cfg.UnknownName
	if s.unknownName == "" {
		s.unknownName = defaultUnknownName
	}
}

// SetAPIKey 更換憑證，之後的請求生效
func (s *Service) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = strings.TrimSpace(key)
}

// HasCredential 是否已設定憑證
func (s *Service) HasCredential() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey != ""
}

// Model 供應商使用的模型
func (s *Service) Model() string {
	return s.provider.GetModel()
}

type snapshot struct {
	apiKey       string
	maxTokens    int
	historyLimit int
	unknownName  string
}

// snapshot 取得本次請求使用的設定；未設定憑證時回傳 CONFIGURATION_ERROR
func (s *Service) snapshot() (snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.apiKey == "" {
		return snapshot{}, common.ErrMissingCredential
	}
	return snapshot{
		apiKey:       s.apiKey,
		maxTokens:    s.maxTokens,
		historyLimit: s.historyLimit,
		unknownName:  s.unknownName,
	}, nil
}

// ExtractFromImage 讀取酒標圖片中的名稱、酒廠與風格
func (s *Service) ExtractFromImage(ctx context.Context, imageBytes []byte) (*ExtractionResult, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	img, err := s.images.Prepare(imageBytes)
	if err != nil {
		return nil, err
	}

	content, err := s.complete(ctx, "extraction", &provider.Request{
		Credential:  snap.apiKey,
		Instruction: extractionPrompt,
		Image:       img,
		MaxTokens:   snap.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	result, err := parseExtraction(content)
	if err != nil {
		common.LogWarn("Failed to parse label extraction",
			zap.Error(err),
			zap.Int("content_length", len(content)),
		)
		return nil, err
	}
	return result, nil
}

// Recommend 依是否喝過（matched 非 nil）產生建議文字
func (s *Service) Recommend(ctx context.Context, queryName string, matched *drink.Record, history []drink.Record) (string, error) {
	snap, err := s.snapshot()
	if err != nil {
		return "", err
	}

	p := buildProfile(history, snap.historyLimit)
	var prompt string
	if matched != nil {
		prompt = repeatPrompt(queryName, *matched, p)
	} else {
		prompt = tryPrompt(queryName, p)
	}

	content, err := s.complete(ctx, "recommendation", &provider.Request{
		Credential:  snap.apiKey,
		System:      systemPrompt,
		Instruction: prompt,
		MaxTokens:   snap.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// complete 對供應商發出唯一一次請求
func (s *Service) complete(ctx context.Context, mode string, req *provider.Request) (string, error) {
	start := time.Now()
	resp, err := s.provider.Complete(ctx, req)
	common.LogAICall(mode, time.Since(start), err, requestIDFrom(ctx))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// CheckResult 查詢結果：是否喝過，以及模型建議
type CheckResult struct {
	Name           string
	Found          bool
	Drink          *drink.Record
	Match          matcher.Result
	Extraction     *ExtractionResult
	Recommendation string
}

// ErrEmptyQuery 查詢名稱為空
var ErrEmptyQuery = common.Wrap(common.ErrInvalidRequest, errors.New("drink name must not be empty"))

// CheckByName 比對歷史紀錄後取得建議
func (s *Service) CheckByName(ctx context.Context, name string, history History) (*CheckResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyQuery
	}
	return s.check(ctx, name, history, nil)
}

// CheckByImage 先辨識酒標，再以辨識到的名稱（或預設名稱）比對並取得建議
func (s *Service) CheckByImage(ctx context.Context, imageBytes []byte, history History) (*CheckResult, error) {
	extraction, err := s.ExtractFromImage(ctx, imageBytes)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	name := s.unknownName
	s.mu.RUnlock()
	if extraction.Name != nil && strings.TrimSpace(*extraction.Name) != "" {
		name = strings.TrimSpace(*extraction.Name)
	}
	return s.check(ctx, name, history, extraction)
}

func (s *Service) check(ctx context.Context, name string, history History, extraction *ExtractionResult) (*CheckResult, error) {
	match := history.FindMatch(name)
	var matched *drink.Record
	if match.Found {
		rec := match.Record
		matched = &rec
	}

	recommendation, err := s.Recommend(ctx, name, matched, history.All())
	if err != nil {
		return nil, err
	}

	return &CheckResult{
		Name:           name,
		Found:          match.Found,
		Drink:          matched,
		Match:          match,
		Extraction:     extraction,
		Recommendation: recommendation,
	}, nil
}

// requestIDFrom 取得 WithRequestID 放入的請求 ID
func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type requestIDKey struct{}

// WithRequestID 將請求 ID 放入 context，供日誌使用
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
