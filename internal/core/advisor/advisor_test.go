package advisor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	imgproc "sipcheck/internal/core/ai/image"
	"sipcheck/internal/core/ai/provider"
	"sipcheck/internal/core/drink"
	"sipcheck/internal/core/matcher"
	"sipcheck/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider 依序回傳 replies，並記錄每次請求
type stubProvider struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []*provider.Request
}

func (p *stubProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	reply := ""
	if len(p.replies) > 0 {
		reply, p.replies = p.replies[0], p.replies[1:]
	}
	return &provider.Response{Content: reply, Model: "stub"}, nil
}

func (p *stubProvider) GetModel() string { return "stub" }
func (p *stubProvider) Close() error     { return nil }

func (p *stubProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type history []drink.Record

func (h history) All() []drink.Record                   { return h }
func (h history) FindMatch(query string) matcher.Result { return matcher.FindMatch(query, h) }

func newTestService(p provider.Provider, apiKey string) *Service {
	return NewService(p, imgproc.NewProcessor(1<<20, 256, 80), Config{APIKey: apiKey})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func rec(t *testing.T, name, style string, rating drink.Rating) drink.Record {
	t.Helper()
	r, err := drink.New(drink.Fields{Name: name, Style: style, Rating: rating})
	require.NoError(t, err)
	return r
}

func TestParseExtraction(t *testing.T) {
	got, err := parseExtraction(`Here you go: {"name":"Hazy IPA","brand":null,"style":"ipa"}  thanks`)
	require.NoError(t, err)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Hazy IPA", *got.Name)
	assert.Nil(t, got.Brand)
	require.NotNil(t, got.Style)
	assert.Equal(t, drink.StyleIPA, *got.Style)
}

func TestParseExtraction_Fields(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantName  *string
		wantBrand *string
		wantStyle *drink.BeerStyle
	}{
		{"all missing", `{}`, nil, nil, nil},
		{"non-string values", `{"name": 42, "brand": ["x"], "style": true}`, nil, nil, nil},
		{"unknown style", `{"name":"Cantillon","style":"Lambic"}`, ptr("Cantillon"), nil, nil},
		{"markdown fence", "```json\n{\"name\":\"Guinness\",\"brand\":\"Guinness\",\"style\":\"STOUT\"}\n```", ptr("Guinness"), ptr("Guinness"), stylePtr(drink.StyleStout)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExtraction(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.wantBrand, got.Brand)
			assert.Equal(t, tt.wantStyle, got.Style)
		})
	}
}

func TestParseExtraction_Errors(t *testing.T) {
	for _, content := range []string{
		"I could not read the label.",
		"} backwards {",
		`{"name": "unterminated}`,
		`{"name":"a"} and {"name":"b"}`,
	} {
		_, err := parseExtraction(content)
		assert.True(t, common.IsKind(err, common.ErrCodeParse), "content %q: %v", content, err)
	}
}

func TestMissingCredentialMakesNoCalls(t *testing.T) {
	p := &stubProvider{replies: []string{"unused"}}
	svc := newTestService(p, "   ")
	ctx := context.Background()

	_, err := svc.Recommend(ctx, "Guinness", nil, nil)
	assert.ErrorIs(t, err, common.ErrMissingCredential)
	assert.True(t, common.IsKind(err, common.ErrCodeConfiguration))

	_, err = svc.ExtractFromImage(ctx, pngBytes(t))
	assert.ErrorIs(t, err, common.ErrMissingCredential)

	_, err = svc.CheckByName(ctx, "Guinness", history{})
	assert.ErrorIs(t, err, common.ErrMissingCredential)

	_, err = svc.CheckByImage(ctx, pngBytes(t), history{})
	assert.ErrorIs(t, err, common.ErrMissingCredential)

	assert.Equal(t, 0, p.calls())
	assert.False(t, svc.HasCredential())

	svc.SetAPIKey("sk-test")
	assert.True(t, svc.HasCredential())
}

func TestExtractFromImage(t *testing.T) {
	p := &stubProvider{replies: []string{`{"name":"Hazy IPA","brand":"Local","style":"ipa"}`}}
	svc := newTestService(p, "sk-test")

	got, err := svc.ExtractFromImage(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "Hazy IPA", *got.Name)
	assert.Equal(t, "Local", *got.Brand)
	assert.Equal(t, drink.StyleIPA, *got.Style)

	require.Equal(t, 1, p.calls())
	req := p.requests[0]
	assert.Equal(t, "sk-test", req.Credential)
	assert.Equal(t, 200, req.MaxTokens)
	assert.Empty(t, req.System)
	assert.Contains(t, req.Instruction, drink.StyleList())
	require.NotNil(t, req.Image)
	assert.Equal(t, "image/jpeg", req.Image.MIMEType)
}

func TestExtractFromImage_InvalidImage(t *testing.T) {
	p := &stubProvider{}
	svc := newTestService(p, "sk-test")

	_, err := svc.ExtractFromImage(context.Background(), []byte("definitely not an image"))
	assert.True(t, common.IsKind(err, common.ErrCodeInvalidInput))
	assert.Equal(t, 0, p.calls())
}

func TestExtractFromImage_NoJSON(t *testing.T) {
	p := &stubProvider{replies: []string{"Sorry, I can't see a label."}}
	svc := newTestService(p, "sk-test")

	_, err := svc.ExtractFromImage(context.Background(), pngBytes(t))
	assert.ErrorIs(t, err, common.ErrParse)
	assert.Equal(t, 1, p.calls())
}

func TestRecommend_Matched(t *testing.T) {
	p := &stubProvider{replies: []string{"  Go for it!\n"}}
	svc := newTestService(p, "sk-test")

	notes := "smooth and creamy"
	matched := rec(t, "Guinness Draught", "Stout", drink.RatingLike)
	matched.Notes = &notes

	got, err := svc.Recommend(context.Background(), "guiness draft", &matched, []drink.Record{matched})
	require.NoError(t, err)
	assert.Equal(t, "Go for it!", got)

	req := p.requests[0]
	assert.Equal(t, systemPrompt, req.System)
	assert.Nil(t, req.Image)
	assert.Contains(t, req.Instruction, `"guiness draft" which they have tried before`)
	assert.Contains(t, req.Instruction, "They rated it: Like")
	assert.Contains(t, req.Instruction, `Their notes: "smooth and creamy"`)
	assert.Contains(t, req.Instruction, "- Guinness Draught (Stout): Like\n")
	assert.Contains(t, req.Instruction, "order this beer again")
}

func TestRecommend_NotTried(t *testing.T) {
	p := &stubProvider{replies: []string{"Worth a try."}}
	svc := newTestService(p, "sk-test")

	hist := []drink.Record{
		rec(t, "Hazy", "IPA", drink.RatingLike),
		rec(t, "Black", "Stout", drink.RatingLike),
		rec(t, "Fizzy", "Lager", drink.RatingDislike),
		rec(t, "Juicy", "IPA", drink.RatingLike),
		rec(t, "Meh", "Pilsner", drink.RatingNeutral),
	}

	_, err := svc.Recommend(context.Background(), "Pliny the Elder", nil, hist)
	require.NoError(t, err)

	instr := p.requests[0].Instruction
	assert.Contains(t, instr, `"Pliny the Elder" which they have NOT tried before`)
	assert.Contains(t, instr, "Liked styles: IPA: 2, Stout: 1\n")
	assert.Contains(t, instr, "Disliked styles: Lager: 1\n")
	assert.Contains(t, instr, "- Meh (Pilsner): Neutral\n")
}

func TestRecommend_EmptyHistory(t *testing.T) {
	p := &stubProvider{replies: []string{"ok"}}
	svc := newTestService(p, "sk-test")

	_, err := svc.Recommend(context.Background(), "Anything", nil, nil)
	require.NoError(t, err)

	instr := p.requests[0].Instruction
	assert.Contains(t, instr, "User's beer history:\n")
	assert.Contains(t, instr, "Liked styles: \n")
	assert.Contains(t, instr, "Disliked styles: \n")
}

func TestBuildProfile_LimitsHistory(t *testing.T) {
	var hist []drink.Record
	for i := 0; i < 25; i++ {
		hist = append(hist, rec(t, fmt.Sprintf("Beer %02d", i), "Lager", drink.RatingLike))
	}

	p := buildProfile(hist, 20)

	assert.Equal(t, 20, strings.Count(p.history, "\n- "))
	assert.Contains(t, p.history, "Beer 19")
	assert.NotContains(t, p.history, "Beer 20")
	assert.Equal(t, "Lager: 20", p.liked.String())
	assert.Empty(t, p.disliked.String())
}

func TestRecommend_HistoryLimitCapped(t *testing.T) {
	var hist history
	for i := 0; i < 30; i++ {
		hist = append(hist, rec(t, fmt.Sprintf("Beer %02d", i), "Lager", drink.RatingLike))
	}

	p := &stubProvider{replies: []string{"ok"}}
	svc := NewService(p, imgproc.NewProcessor(1<<20, 256, 80), Config{APIKey: "sk-test", HistoryLimit: 50})

	_, err := svc.Recommend(context.Background(), "Anything", nil, hist)
	require.NoError(t, err)

	instr := p.requests[0].Instruction
	assert.Equal(t, 20, strings.Count(instr, "\n- "))
	assert.NotContains(t, instr, "Beer 20")
}

func TestRecommend_ProviderErrorPropagates(t *testing.T) {
	p := &stubProvider{err: common.NewTransportError(500, "boom")}
	svc := newTestService(p, "sk-test")

	_, err := svc.Recommend(context.Background(), "Guinness", nil, nil)
	assert.ErrorIs(t, err, common.ErrTransport)

	ce, ok := common.AsCustomError(err)
	require.True(t, ok)
	assert.Equal(t, 500, ce.UpstreamStatus)
	assert.Equal(t, 1, p.calls())
}

func TestCheckByName(t *testing.T) {
	guinness := rec(t, "Guinness Draught", "Stout", drink.RatingLike)
	hist := history{guinness}

	t.Run("found", func(t *testing.T) {
		p := &stubProvider{replies: []string{"Order it again."}}
		svc := newTestService(p, "sk-test")

		got, err := svc.CheckByName(context.Background(), "  guiness draft ", hist)
		require.NoError(t, err)
		assert.Equal(t, "guiness draft", got.Name)
		assert.True(t, got.Found)
		require.NotNil(t, got.Drink)
		assert.Equal(t, guinness.ID, got.Drink.ID)
		assert.Equal(t, matcher.RuleSimilar, got.Match.Rule)
		assert.Equal(t, "Order it again.", got.Recommendation)
		assert.Nil(t, got.Extraction)
		assert.Contains(t, p.requests[0].Instruction, "tried before")
	})

	t.Run("not found", func(t *testing.T) {
		p := &stubProvider{replies: []string{"Maybe."}}
		svc := newTestService(p, "sk-test")

		got, err := svc.CheckByName(context.Background(), "Corona", hist)
		require.NoError(t, err)
		assert.False(t, got.Found)
		assert.Nil(t, got.Drink)
		assert.Contains(t, p.requests[0].Instruction, "NOT tried before")
	})

	t.Run("blank name", func(t *testing.T) {
		p := &stubProvider{}
		svc := newTestService(p, "sk-test")

		_, err := svc.CheckByName(context.Background(), "  ", hist)
		assert.ErrorIs(t, err, ErrEmptyQuery)
		assert.Equal(t, 0, p.calls())
	})
}

func TestCheckByImage_FallsBackToUnknownName(t *testing.T) {
	p := &stubProvider{replies: []string{`{"name":null,"brand":null,"style":null}`, "Hard to say."}}
	svc := newTestService(p, "sk-test")

	got, err := svc.CheckByImage(context.Background(), pngBytes(t), history{})
	require.NoError(t, err)
	assert.Equal(t, "Unknown Beer", got.Name)
	assert.False(t, got.Found)
	require.NotNil(t, got.Extraction)
	assert.Nil(t, got.Extraction.Name)
	assert.Equal(t, "Hard to say.", got.Recommendation)
	assert.Equal(t, 2, p.calls())
}

func TestCheckByImage_UsesExtractedName(t *testing.T) {
	guinness := rec(t, "Guinness Draught", "Stout", drink.RatingDislike)
	p := &stubProvider{replies: []string{`{"name":"Guinness Draught","brand":"Guinness","style":"stout"}`, "Skip it."}}
	svc := newTestService(p, "sk-test")

	got, err := svc.CheckByImage(context.Background(), pngBytes(t), history{guinness})
	require.NoError(t, err)
	assert.Equal(t, "Guinness Draught", got.Name)
	assert.True(t, got.Found)
	assert.Equal(t, matcher.RuleExact, got.Match.Rule)
	assert.Contains(t, p.requests[1].Instruction, "They rated it: Dislike")
}

func ptr(s string) *string { return &s }

func stylePtr(s drink.BeerStyle) *drink.BeerStyle { return &s }
