package drink

import "strings"

// Rating 三段評價，持久化為 0/1/2
type Rating int

const (
	RatingDislike Rating = iota
	RatingNeutral
	RatingLike
)

// RatingFromValue 由持久化整數還原評價，未知值回退為 Neutral
func RatingFromValue(v int) Rating {
	switch v {
	case 0:
		return RatingDislike
	case 2:
		return RatingLike
	default:
		return RatingNeutral
	}
}

// Value 持久化整數
func (r Rating) Value() int {
	switch r {
	case RatingDislike:
		return 0
	case RatingLike:
		return 2
	default:
		return 1
	}
}

// Label 顯示名稱
func (r Rating) Label() string {
	switch r {
	case RatingLike:
		return "Like"
	case RatingDislike:
		return "Dislike"
	default:
		return "Neutral"
	}
}

func (r Rating) String() string {
	return strings.ToLower(r.Label())
}

// ParseRating 解析 like / neutral / dislike（不分大小寫）
func ParseRating(s string) (Rating, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return RatingLike, true
	case "neutral":
		return RatingNeutral, true
	case "dislike":
		return RatingDislike, true
	}
	return RatingNeutral, false
}

// ServingType 供應方式，持久化為 0/1
type ServingType int

const (
	ServingDraft ServingType = iota
	ServingBottleOrCan
)

// ServingTypeFromValue 由持久化整數還原，未知值回退為瓶裝/罐裝
func ServingTypeFromValue(v int) ServingType {
	switch v {
	case 0:
		return ServingDraft
	default:
		return ServingBottleOrCan
	}
}

// Value 持久化整數
func (s ServingType) Value() int {
	if s == ServingDraft {
		return 0
	}
	return 1
}

// Label 顯示名稱
func (s ServingType) Label() string {
	if s == ServingDraft {
		return "Draft"
	}
	return "Bottle/Can"
}

func (s ServingType) String() string {
	if s == ServingDraft {
		return "draft"
	}
	return "regular"
}

// ParseServingType 解析 draft / regular / bottle / can
func ParseServingType(s string) (ServingType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return ServingDraft, true
	case "regular", "bottle", "can", "bottle/can":
		return ServingBottleOrCan, true
	}
	return ServingBottleOrCan, false
}

// BeerStyle 與辨識服務交換的封閉風格清單
type BeerStyle string

const (
	StyleIPA      BeerStyle = "IPA"
	StylePaleAle  BeerStyle = "Pale Ale"
	StyleLager    BeerStyle = "Lager"
	StylePilsner  BeerStyle = "Pilsner"
	StyleStout    BeerStyle = "Stout"
	StylePorter   BeerStyle = "Porter"
	StyleWheat    BeerStyle = "Wheat"
	StyleSour     BeerStyle = "Sour"
	StyleAmber    BeerStyle = "Amber"
	StyleBrownAle BeerStyle = "Brown Ale"
	StyleBelgian  BeerStyle = "Belgian"
	StyleOther    BeerStyle = "Other"
)

// BeerStyles 依顯示順序列出所有風格
var BeerStyles = []BeerStyle{
	StyleIPA, StylePaleAle, StyleLager, StylePilsner, StyleStout, StylePorter,
	StyleWheat, StyleSour, StyleAmber, StyleBrownAle, StyleBelgian, StyleOther,
}

// ParseBeerStyle 不分大小寫比對封閉清單
func ParseBeerStyle(s string) (BeerStyle, bool) {
	for _, style := range BeerStyles {
		if strings.EqualFold(string(style), s) {
			return style, true
		}
	}
	return "", false
}

// StyleList 以 ", " 串接的風格清單，供提示詞使用
func StyleList() string {
	names := make([]string, len(BeerStyles))
	for i, style := range BeerStyles {
		names[i] = string(style)
	}
	return strings.Join(names, ", ")
}
