// Package drink 定義飲品紀錄與其持久化格式。
package drink

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyName 名稱為空
var ErrEmptyName = errors.New("drink name must not be empty")

// Record 一筆飲品紀錄；ID 與 CreatedAt 建立後不再變更
type Record struct {
	ID          uuid.UUID
	Name        string
	Brand       string
	Style       string
	Rating      Rating
	ServingType ServingType
	Notes       *string
	CreatedAt   time.Time
}

// Fields 建立或更新紀錄時可指定的欄位
type Fields struct {
	Name        string
	Brand       string
	Style       string
	Rating      Rating
	ServingType ServingType
	Notes       *string
}

// DefaultFields 原始 App 新增飲品時的預設值
func DefaultFields(name string) Fields {
	return Fields{
		Name:        name,
		Style:       string(StyleOther),
		Rating:      RatingNeutral,
		ServingType: ServingBottleOrCan,
	}
}

// New 建立新紀錄並指派 ID 與建立時間
func New(f Fields) (Record, error) {
	r := Record{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.Apply(f); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Apply 套用可變欄位；ID 與 CreatedAt 不受影響
func (r *Record) Apply(f Fields) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return ErrEmptyName
	}
	style := strings.TrimSpace(f.Style)
	if style == "" {
		style = string(StyleOther)
	}

	r.Name = name
	r.Brand = strings.TrimSpace(f.Brand)
	r.Style = style
	r.Rating = RatingFromValue(f.Rating.Value())
	r.ServingType = ServingTypeFromValue(f.ServingType.Value())
	r.Notes = normalizeNotes(f.Notes)
	return nil
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// NotesText 回傳備註，無備註時為空字串
func (r Record) NotesText() string {
	if r.Notes == nil {
		return ""
	}
	return *r.Notes
}

// referenceDate 舊版資料以此為基準的秒數儲存時間
var referenceDate = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// wireRecord 持久化欄位名稱
type wireRecord struct {
	ID          *uuid.UUID      `json:"id"`
	Name        *string         `json:"name"`
	Brand       string          `json:"brand"`
	Style       string          `json:"style"`
	RatingValue *int            `json:"ratingValue"`
	TypeValue   *int            `json:"typeValue"`
	Notes       *string         `json:"notes"`
	DateAdded   json.RawMessage `json:"dateAdded"`
}

// MarshalJSON 以持久化格式輸出
func (r Record) MarshalJSON() ([]byte, error) {
	id := r.ID
	name := r.Name
	rating := r.Rating.Value()
	typ := r.ServingType.Value()
	date, err := json.Marshal(r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireRecord{
		ID:          &id,
		Name:        &name,
		Brand:       r.Brand,
		Style:       r.Style,
		RatingValue: &rating,
		TypeValue:   &typ,
		Notes:       r.Notes,
		DateAdded:   date,
	})
}

// UnmarshalJSON 讀取持久化格式；評價與供應方式的未知值使用預設值
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.ID == nil:
		return errors.New("drink record: missing id")
	case w.Name == nil || strings.TrimSpace(*w.Name) == "":
		return errors.New("drink record: missing name")
	case w.RatingValue == nil:
		return errors.New("drink record: missing ratingValue")
	case w.TypeValue == nil:
		return errors.New("drink record: missing typeValue")
	}

	createdAt, err := parseDate(w.DateAdded)
	if err != nil {
		return err
	}

	*r = Record{
		ID:          *w.ID,
		Name:        *w.Name,
		Brand:       w.Brand,
		Style:       w.Style,
		Rating:      RatingFromValue(*w.RatingValue),
		ServingType: ServingTypeFromValue(*w.TypeValue),
		Notes:       w.Notes,
		CreatedAt:   createdAt,
	}
	return nil
}

// parseDate 接受 RFC 3339 字串，或自 2001-01-01 起算的秒數
func parseDate(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, errors.New("drink record: missing dateAdded")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("drink record: invalid dateAdded: %w", err)
		}
		return t.UTC(), nil
	}

	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		return time.Time{}, fmt.Errorf("drink record: invalid dateAdded: %w", err)
	}
	return referenceDate.Add(time.Duration(seconds * float64(time.Second))), nil
}
