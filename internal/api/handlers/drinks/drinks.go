package drinks

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"sipcheck/internal/core/drink"
	"sipcheck/internal/core/store"
	"sipcheck/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultRecent 首頁顯示的最近紀錄數
const defaultRecent = 3

// DrinkRequest 新增或修改飲品
type DrinkRequest struct {
	Name        string  `json:"name" binding:"required"`
	Brand       string  `json:"brand"`
	Style       string  `json:"style"`
	Rating      string  `json:"rating"`       // like / neutral / dislike
	ServingType string  `json:"serving_type"` // draft / regular
	Notes       *string `json:"notes"`
}

// DrinkResponse 飲品紀錄
type DrinkResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Style       string    `json:"style"`
	Rating      string    `json:"rating"`
	RatingLabel string    `json:"rating_label"`
	ServingType string    `json:"serving_type"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchResponse 比對結果
type MatchResponse struct {
	Query      string         `json:"query"`
	Found      bool           `json:"found"`
	Rule       string         `json:"rule,omitempty"`
	Similarity float64        `json:"similarity,omitempty"`
	Drink      *DrinkResponse `json:"drink,omitempty"`
}

// ToResponse 轉換為 API 格式
func ToResponse(r drink.Record) DrinkResponse {
	return DrinkResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Brand:       r.Brand,
		Style:       r.Style,
		Rating:      r.Rating.String(),
		RatingLabel: r.Rating.Label(),
		ServingType: r.ServingType.String(),
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
	}
}

func toResponses(records []drink.Record) []DrinkResponse {
	out := make([]DrinkResponse, len(records))
	for i, r := range records {
		out[i] = ToResponse(r)
	}
	return out
}

// fields 將請求轉為紀錄欄位；未指定時沿用新增飲品的預設值
func (req DrinkRequest) fields() (drink.Fields, error) {
	f := drink.DefaultFields(req.Name)
	f.Brand = req.Brand
	if req.Style != "" {
		f.Style = req.Style
	}
	if req.Rating != "" {
		rating, ok := drink.ParseRating(req.Rating)
		if !ok {
			return f, common.Wrap(common.ErrInvalidRequest, errors.New("rating must be like, neutral or dislike"))
		}
		f.Rating = rating
	}
	if req.ServingType != "" {
		serving, ok := drink.ParseServingType(req.ServingType)
		if !ok {
			return f, common.Wrap(common.ErrInvalidRequest, errors.New("serving_type must be draft or regular"))
		}
		f.ServingType = serving
	}
	f.Notes = req.Notes
	return f, nil
}

// Handler 飲品紀錄 API
type Handler struct {
	store *store.Store
}

// NewHandler 創建處理器
func NewHandler(s *store.Store) *Handler {
	return &Handler{store: s}
}

// List GET /drinks?q=&rating=&style=
func (h *Handler) List(c *gin.Context) {
	filter := store.Filter{
		Search: c.Query("q"),
		Style:  c.Query("style"),
	}
	if raw := c.Query("rating"); raw != "" {
		rating, ok := drink.ParseRating(raw)
		if !ok {
			common.WriteError(c, common.Wrap(common.ErrInvalidRequest, errors.New("rating must be like, neutral or dislike")))
			return
		}
		filter.Rating = &rating
	}

	records := h.store.List(filter)
	c.JSON(http.StatusOK, gin.H{
		"drinks": toResponses(records),
		"count":  len(records),
	})
}

// Recent GET /drinks/recent?n=
func (h *Handler) Recent(c *gin.Context) {
	n := defaultRecent
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			common.WriteError(c, common.Wrap(common.ErrInvalidRequest, errors.New("n must be a non-negative integer")))
			return
		}
		n = v
	}
	c.JSON(http.StatusOK, gin.H{
		"drinks": toResponses(h.store.Recent(n)),
		"total":  h.store.Len(),
	})
}

// Match GET /drinks/match?q=
func (h *Handler) Match(c *gin.Context) {
	query := c.Query("q")
	result := h.store.FindMatch(query)

	resp := MatchResponse{
		Query:      query,
		Found:      result.Found,
		Rule:       string(result.Rule),
		Similarity: result.Similarity,
	}
	if result.Found {
		d := ToResponse(result.Record)
		resp.Drink = &d
	}
	c.JSON(http.StatusOK, resp)
}

// Get GET /drinks/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	r, found := h.store.Get(id)
	if !found {
		common.WriteError(c, common.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, ToResponse(r))
}

// Create POST /drinks
func (h *Handler) Create(c *gin.Context) {
	var req DrinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestid.Get(c)),
		)
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}

	f, err := req.fields()
	if err != nil {
		common.WriteError(c, err)
		return
	}
	r, err := drink.New(f)
	if err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}
	if err := h.store.Add(c.Request.Context(), r); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}

	common.LogInfo("新增飲品紀錄",
		zap.String("id", r.ID.String()),
		zap.String("name", r.Name),
		zap.String("request_id", requestid.Get(c)),
	)
	c.JSON(http.StatusCreated, ToResponse(r))
}

// Update PUT /drinks/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req DrinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}

	existing, found := h.store.Get(id)
	if !found {
		common.WriteError(c, common.ErrNotFound)
		return
	}
	f, err := req.fields()
	if err != nil {
		common.WriteError(c, err)
		return
	}
	if err := existing.Apply(f); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}

	updated, err := h.store.Update(c.Request.Context(), existing)
	if err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}
	// 讀取與更新之間可能已被刪除
	if !updated {
		common.WriteError(c, common.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, ToResponse(existing))
}

// Delete DELETE /drinks/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if !h.store.Delete(c.Request.Context(), id) {
		common.WriteError(c, common.ErrNotFound)
		return
	}
	common.LogInfo("刪除飲品紀錄",
		zap.String("id", id.String()),
		zap.String("request_id", requestid.Get(c)),
	)
	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, errors.New("invalid drink id")))
		return uuid.UUID{}, false
	}
	return id, true
}
