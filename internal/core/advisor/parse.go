package advisor

import (
	"fmt"

	"sipcheck/internal/core/drink"
	"sipcheck/internal/pkg/common"
)

// ExtractionResult 酒標辨識結果；每個欄位都可能辨識不到
type ExtractionResult struct {
	Name  *string          `json:"name"`
	Brand *string          `json:"brand"`
	Style *drink.BeerStyle `json:"style"`
}

// parseExtraction 取出回應中第一個 '{' 到最後一個 '}' 解析。
// 非字串或缺少的欄位為 nil；不在清單中的風格為 nil。
func parseExtraction(content string) (*ExtractionResult, error) {
	raw, err := common.ExtractJSONObject(content)
	if err != nil {
		return nil, common.NewParseError(err)
	}

	var fields map[string]interface{}
	if err := common.ParseJSON(raw, &fields); err != nil {
		return nil, common.NewParseError(fmt.Errorf("invalid extraction JSON: %w", err))
	}

	result := &ExtractionResult{
		Name:  stringField(fields, "name"),
		Brand: stringField(fields, "brand"),
	}
	if s := stringField(fields, "style"); s != nil {
		if style, ok := drink.ParseBeerStyle(*s); ok {
			result.Style = &style
		}
	}
	return result, nil
}

func stringField(fields map[string]interface{}, key string) *string {
	s, ok := fields[key].(string)
	if !ok {
		return nil
	}
	return &s
}
