package check

import (
	"context"
	"errors"
	"net/http"

	"sipcheck/internal/api/handlers/drinks"
	"sipcheck/internal/core/advisor"
	"sipcheck/internal/core/ai/image"
	"sipcheck/internal/core/ai/queue"
	"sipcheck/internal/core/store"
	"sipcheck/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NameRequest 以名稱查詢
type NameRequest struct {
	Name string `json:"name" binding:"required"`
}

// ImageRequest 以酒標圖片查詢；image 為 base64 或 data URI
type ImageRequest struct {
	Image string `json:"image" binding:"required"`
}

// ExtractionResponse 酒標辨識結果
type ExtractionResponse struct {
	Name  *string `json:"name"`
	Brand *string `json:"brand"`
	Style *string `json:"style"`
}

// CheckResponse 查詢結果
type CheckResponse struct {
	Name           string                `json:"name"`
	Found          bool                  `json:"found"`
	Rule           string                `json:"rule,omitempty"`
	Similarity     float64               `json:"similarity,omitempty"`
	Drink          *drinks.DrinkResponse `json:"drink,omitempty"`
	Extraction     *ExtractionResponse   `json:"extraction,omitempty"`
	Recommendation string                `json:"recommendation"`
}

func toExtractionResponse(e *advisor.ExtractionResult) *ExtractionResponse {
	if e == nil {
		return nil
	}
	resp := &ExtractionResponse{Name: e.Name, Brand: e.Brand}
	if e.Style != nil {
		s := string(*e.Style)
		resp.Style = &s
	}
	return resp
}

func toCheckResponse(r *advisor.CheckResult) CheckResponse {
	resp := CheckResponse{
		Name:           r.Name,
		Found:          r.Found,
		Rule:           string(r.Match.Rule),
		Similarity:     r.Match.Similarity,
		Extraction:     toExtractionResponse(r.Extraction),
		Recommendation: r.Recommendation,
	}
	if r.Drink != nil {
		d := drinks.ToResponse(*r.Drink)
		resp.Drink = &d
	}
	return resp
}

// Handler 查詢與酒標辨識 API；模型請求一律經過隊列
type Handler struct {
	advisor *advisor.Service
	store   *store.Store
	queue   *queue.Manager
}

// NewHandler 創建處理器
func NewHandler(a *advisor.Service, s *store.Store, q *queue.Manager) *Handler {
	return &Handler{advisor: a, store: s, queue: q}
}

// CheckByName POST /check
func (h *Handler) CheckByName(c *gin.Context) {
	requestID := requestid.Get(c)

	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效", zap.Error(err), zap.String("request_id", requestID))
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}

	common.LogInfo("開始處理飲品查詢",
		zap.String("request_id", requestID),
		zap.String("name", req.Name),
	)

	result, err := run(c, h.queue, func(ctx context.Context) (*advisor.CheckResult, error) {
		return h.advisor.CheckByName(ctx, req.Name, h.store)
	})
	if err != nil {
		h.fail(c, "飲品查詢失敗", err)
		return
	}

	c.JSON(http.StatusOK, toCheckResponse(result))
}

// CheckByImage POST /check/image
func (h *Handler) CheckByImage(c *gin.Context) {
	data, ok := h.bindImage(c)
	if !ok {
		return
	}

	result, err := run(c, h.queue, func(ctx context.Context) (*advisor.CheckResult, error) {
		return h.advisor.CheckByImage(ctx, data, h.store)
	})
	if err != nil {
		h.fail(c, "酒標查詢失敗", err)
		return
	}

	c.JSON(http.StatusOK, toCheckResponse(result))
}

// Extract POST /extract
func (h *Handler) Extract(c *gin.Context) {
	data, ok := h.bindImage(c)
	if !ok {
		return
	}

	result, err := run(c, h.queue, func(ctx context.Context) (*advisor.ExtractionResult, error) {
		return h.advisor.ExtractFromImage(ctx, data)
	})
	if err != nil {
		h.fail(c, "酒標辨識失敗", err)
		return
	}

	c.JSON(http.StatusOK, toExtractionResponse(result))
}

func (h *Handler) bindImage(c *gin.Context) ([]byte, bool) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效", zap.Error(err), zap.String("request_id", requestid.Get(c)))
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return nil, false
	}
	data, err := image.DecodePayload(req.Image)
	if err != nil {
		common.LogImageProcessing("warn",
			zap.Error(err),
			zap.Int("image_length", len(req.Image)),
			zap.String("request_id", requestid.Get(c)),
		)
		common.WriteError(c, err)
		return nil, false
	}
	return data, true
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		err = common.Wrap(common.ErrGatewayTimeout, err)
	case errors.Is(err, queue.ErrClosed):
		err = common.Wrap(common.ErrServiceUnavailable, err)
	}
	common.LogError(msg,
		zap.Error(err),
		zap.String("request_id", requestid.Get(c)),
	)
	common.WriteError(c, err)
}

// run 透過隊列執行 job；呼叫端取消時立即返回並丟棄結果
func run[T any](c *gin.Context, q *queue.Manager, job func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	ctx := advisor.WithRequestID(c.Request.Context(), requestid.Get(c))
	out, err := q.Do(ctx, func(ctx context.Context) (any, error) {
		return job(ctx)
	})
	if err != nil {
		return zero, err
	}
	v, ok := out.(T)
	if !ok {
		return zero, common.Wrap(common.ErrInternalError, errors.New("unexpected queue result type"))
	}
	return v, nil
}
