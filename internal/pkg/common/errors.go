package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code           string // 錯誤代碼
	Message        string // 錯誤信息
	Err            error  // 原始錯誤
	Status         int    // HTTP 狀態碼
	UpstreamStatus int    // 上游服務回傳的狀態碼（僅 TRANSPORT_ERROR）
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 回傳原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，讓 errors.Is 可直接與預定義錯誤比較
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Wrap 以預定義錯誤為範本包裝原始錯誤
func Wrap(base *CustomError, err error) *CustomError {
	return &CustomError{
		Code:    base.Code,
		Message: base.Message,
		Status:  base.Status,
		Err:     err,
	}
}

// NewTransportError 上游回傳非 2xx 狀態碼
func NewTransportError(status int, body string) *CustomError {
	e := Wrap(ErrTransport, fmt.Errorf("status %d: %s", status, body))
	e.UpstreamStatus = status
	return e
}

// NewProviderError 上游回報的錯誤訊息
func NewProviderError(message string) *CustomError {
	return Wrap(ErrProvider, errors.New(message))
}

// NewParseError 回應無法解析為預期格式
func NewParseError(err error) *CustomError {
	return Wrap(ErrParse, err)
}

// NewInputError 輸入資料無效
func NewInputError(err error) *CustomError {
	return Wrap(ErrInvalidInput, err)
}

// IsKind 檢查錯誤鏈中是否有指定代碼的 CustomError
func IsKind(err error, code string) bool {
	var ce *CustomError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}

// AsCustomError 取出錯誤鏈中的 CustomError
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	ok := errors.As(err, &ce)
	return ce, ok
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeRequestTimeout  = "REQUEST_TIMEOUT"   // 408
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE" // 413
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"     // 504

	// 推薦流程錯誤
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeInvalidInput    = "INPUT_ERROR"
	ErrCodeTransport       = "TRANSPORT_ERROR"
	ErrCodeProvider        = "PROVIDER_ERROR"
	ErrCodeParse           = "PARSE_ERROR"
	ErrCodePersistenceRead = "PERSISTENCE_READ_ERROR"
	ErrCodePersistenceSave = "PERSISTENCE_WRITE_ERROR"
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrNotFound       = NewError(ErrCodeNotFound, "resource not found", http.StatusNotFound, nil)

	// 服務器錯誤
	ErrInternalError      = NewError(ErrCodeInternalError, "internal server error", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "service temporarily unavailable", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout     = NewError(ErrCodeGatewayTimeout, "gateway timeout", http.StatusGatewayTimeout, nil)

	// 業務錯誤
	ErrMissingCredential = NewError(ErrCodeConfiguration, "completion provider API key not configured", http.StatusServiceUnavailable, nil)
	ErrInvalidInput      = NewError(ErrCodeInvalidInput, "could not process image", http.StatusBadRequest, nil)
	ErrTransport         = NewError(ErrCodeTransport, "completion provider returned an error status", http.StatusBadGateway, nil)
	ErrProvider          = NewError(ErrCodeProvider, "completion provider error", http.StatusBadGateway, nil)
	ErrParse             = NewError(ErrCodeParse, "could not parse completion response", http.StatusBadGateway, nil)
	ErrPersistenceRead   = NewError(ErrCodePersistenceRead, "failed to read drink history", http.StatusInternalServerError, nil)
	ErrPersistenceWrite  = NewError(ErrCodePersistenceSave, "failed to save drink history", http.StatusInternalServerError, nil)
	ErrQueueFull         = NewError(ErrCodeServiceUnavailable, "request queue is full", http.StatusServiceUnavailable, nil)
)
