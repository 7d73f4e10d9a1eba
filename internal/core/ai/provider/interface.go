package provider

import (
	"context"
)

// Image 要附在請求中的圖片
type Image struct {
	MIMEType string // 例如 image/jpeg
	Data     []byte
}

// Request 表示發送到補全供應商的單輪請求
type Request struct {
	Credential  string // 呼叫端提供的 API Key
	System      string // 系統提示，可為空
	Instruction string // 使用者指示
	Image       *Image // 可選的圖片
	MaxTokens   int    // 回應長度上限
}

// Usage token 使用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 表示從供應商收到的文字回應
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Provider 定義補全供應商介面
type Provider interface {
	// Complete 發送一次請求並回傳模型輸出的文字
	Complete(ctx context.Context, req *Request) (*Response, error)

	// GetModel 獲取當前使用的模型名稱
	GetModel() string

	// Close 關閉提供者連接
	Close() error
}
