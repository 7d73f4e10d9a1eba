package advisor

import (
	"fmt"
	"strings"

	"sipcheck/internal/core/drink"
)

const systemPrompt = "You are a helpful beer recommendation assistant. Give brief, personalized recommendations based on the user's taste history. Be friendly and conversational."

// extractionPrompt 要求模型讀取酒標並只回傳一個 JSON 物件
var extractionPrompt = fmt.Sprintf(`Analyze this beer label image. Extract the following information:
1. Beer name
2. Brewery/Brand name
3. Beer style (choose from: %s)

Respond ONLY with a JSON object in this exact format:
{"name": "beer name", "brand": "brewery name", "style": "style from list"}

If you cannot determine a field, use null for that field.`, drink.StyleList())

// styleCount 依首次出現順序累計的風格次數
type styleCount struct {
	style string
	count int
}

type styleTally []styleCount

func (t styleTally) add(style string) styleTally {
	for i := range t {
		if t[i].style == style {
			t[i].count++
			return t
		}
	}
	return append(t, styleCount{style: style, count: 1})
}

func (t styleTally) String() string {
	parts := make([]string, len(t))
	for i, sc := range t {
		parts[i] = fmt.Sprintf("%s: %d", sc.style, sc.count)
	}
	return strings.Join(parts, ", ")
}

// profile 由最近的紀錄整理出的偏好摘要
type profile struct {
	history  string
	liked    styleTally
	disliked styleTally
}

// buildProfile 取最多 limit 筆最近紀錄，每筆一行 "- name (style): Label"
func buildProfile(history []drink.Record, limit int) profile {
	if len(history) > limit {
		history = history[:limit]
	}

	var sb strings.Builder
	sb.WriteString("User's beer history:\n")

	var p profile
	for _, r := range history {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", r.Name, r.Style, r.Rating.Label())

		switch r.Rating {
		case drink.RatingLike:
			p.liked = p.liked.add(r.Style)
		case drink.RatingDislike:
			p.disliked = p.disliked.add(r.Style)
		}
	}
	p.history = sb.String()
	return p
}

// repeatPrompt 使用者喝過這款酒：依過去評價判斷是否再點
func repeatPrompt(name string, matched drink.Record, p profile) string {
	notes := ""
	if matched.Notes != nil {
		notes = fmt.Sprintf("Their notes: %q", *matched.Notes)
	}

	return fmt.Sprintf(`The user is looking at %q which they have tried before.
They rated it: %s
%s

%s

Based on their rating and overall preferences, give a brief (2-3 sentences) personalized recommendation about whether they should order this beer again.
Be conversational and helpful.`, name, matched.Rating.Label(), notes, p.history)
}

// tryPrompt 使用者沒喝過：依喜歡與不喜歡的風格判斷是否值得嘗試
func tryPrompt(name string, p profile) string {
	return fmt.Sprintf(`The user is considering %q which they have NOT tried before.

%s

Liked styles: %s
Disliked styles: %s

Based on their preferences, give a brief (2-3 sentences) personalized recommendation about whether this beer might be a good choice for them.
Consider if this beer's likely style matches their preferences.
Be conversational and helpful.`, name, p.history, p.liked, p.disliked)
}
