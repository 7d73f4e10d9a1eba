// Package matcher 判斷新觀察到的飲品名稱是否對應到既有紀錄。
//
// 規則依序套用，第一個命中的規則即為結果：完全相同、互相包含、
// 編輯距離相似度達門檻。所有比較都在 Normalize 之後進行。
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"sipcheck/internal/core/drink"

	"github.com/agnivade/levenshtein"
)

// SimilarityThreshold 相似度門檻（含）
const SimilarityThreshold = 0.70

// Rule 命中的規則
type Rule string

const (
	RuleNone     Rule = ""
	RuleExact    Rule = "exact"
	RuleContains Rule = "contains"
	RuleSimilar  Rule = "similar"
)

// Result 比對結果；Found 為 false 時其他欄位皆為零值
type Result struct {
	Found      bool         `json:"found"`
	Record     drink.Record `json:"-"`
	Rule       Rule         `json:"rule,omitempty"`
	Similarity float64      `json:"similarity,omitempty"`
}

// NotFound 未命中
var NotFound = Result{}

// FindMatch 在 records 中尋找 query 對應的紀錄，依 records 順序取第一筆
func FindMatch(query string, records []drink.Record) Result {
	q := Normalize(query)
	if q == "" || len(records) == 0 {
		return NotFound
	}

	names := make([]string, len(records))
	for i, r := range records {
		names[i] = Normalize(r.Name)
	}

	for i, name := range names {
		if name == q {
			return Result{Found: true, Record: records[i], Rule: RuleExact, Similarity: 1}
		}
	}

	for i, name := range names {
		if name == "" {
			continue
		}
		if strings.Contains(name, q) || strings.Contains(q, name) {
			return Result{Found: true, Record: records[i], Rule: RuleContains, Similarity: Similarity(name, q)}
		}
	}

	for i, name := range names {
		if score := Similarity(name, q); score >= SimilarityThreshold {
			return Result{Found: true, Record: records[i], Rule: RuleSimilar, Similarity: score}
		}
	}

	return NotFound
}

// Normalize 轉小寫、去除前後空白與 tab，並將「兩個空白」單次替換為一個。
// 三個以上連續空白不會完全收斂。
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimFunc(s, isHorizontalSpace)
	return strings.ReplaceAll(s, "  ", " ")
}

func isHorizontalSpace(r rune) bool {
	return r != '\n' && r != '\r' && r != '\v' && r != '\f' && r != 0x85 && unicode.IsSpace(r)
}

// Similarity 1 - 編輯距離 / 較長字串的字元數；兩者皆空時為 1
func Similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Distance(a, b))/float64(maxLen)
}

// Distance 以 Unicode code point 計算的 Levenshtein 編輯距離（單位成本，不含換位）
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}
