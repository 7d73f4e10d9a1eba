package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sipcheck/internal/core/ai/provider"
	"sipcheck/internal/infrastructure/config"
	"sipcheck/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.CompletionConfig{
		BaseURL: srv.URL + "/v1/",
		Model:   "gpt-4o",
		Title:   "SipCheck",
		Timeout: 5 * time.Second,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c, &hits
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestComplete_Success(t *testing.T) {
	var captured map[string]interface{}
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "SipCheck", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		writeJSON(w, http.StatusOK, `{"id":"1","model":"gpt-4o-2024","choices":[{"message":{"role":"assistant","content":"Try it!"}}],"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`)
	})

	resp, err := c.Complete(context.Background(), &provider.Request{
		Credential:  "sk-test",
		System:      "be brief",
		Instruction: "what is on this label?",
		Image:       &provider.Image{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}},
		MaxTokens:   200,
	})
	require.NoError(t, err)
	assert.Equal(t, "Try it!", resp.Content)
	assert.Equal(t, "gpt-4o-2024", resp.Model)
	assert.Equal(t, 13, resp.Usage.TotalTokens)
	assert.Equal(t, int32(1), hits.Load())

	assert.Equal(t, "gpt-4o", captured["model"])
	assert.Equal(t, float64(200), captured["max_tokens"])
	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])

	user := messages[1].(map[string]interface{})
	assert.Equal(t, "user", user["role"])
	content := user["content"].([]interface{})
	require.Len(t, content, 2)
	assert.Equal(t, "what is on this label?", content[0].(map[string]interface{})["text"])
	imageURL := content[1].(map[string]interface{})["image_url"].(map[string]interface{})["url"].(string)
	assert.Equal(t, "data:image/jpeg;base64,/9g=", imageURL)
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantCode   string
		wantStatus int
		wantText   string
	}{
		{"provider message on 401", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`, common.ErrCodeProvider, 0, "Incorrect API key provided"},
		{"transport error without message", http.StatusInternalServerError, `upstream exploded`, common.ErrCodeTransport, 500, "upstream exploded"},
		{"transport error with empty message", http.StatusTooManyRequests, `{"error":{"message":""}}`, common.ErrCodeTransport, 429, ""},
		{"malformed success body", http.StatusOK, `not json`, common.ErrCodeParse, 0, ""},
		{"no choices", http.StatusOK, `{"choices":[]}`, common.ErrCodeParse, 0, ""},
		{"null content", http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":null}}]}`, common.ErrCodeParse, 0, ""},
		{"error in success body", http.StatusOK, `{"error":{"message":"model overloaded"}}`, common.ErrCodeProvider, 0, "model overloaded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := c.Complete(context.Background(), &provider.Request{Credential: "sk-test", Instruction: "hi"})
			require.Error(t, err)

			ce, ok := common.AsCustomError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, ce.Code)
			assert.Equal(t, tt.wantStatus, ce.UpstreamStatus)
			if tt.wantText != "" {
				assert.Contains(t, err.Error(), tt.wantText)
			}
		})
	}
}

func TestComplete_MissingCredential(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})

	_, err := c.Complete(context.Background(), &provider.Request{Instruction: "hi"})
	assert.ErrorIs(t, err, common.ErrMissingCredential)
	assert.Equal(t, int32(0), hits.Load())
}

func TestComplete_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.CompletionConfig{BaseURL: url, Timeout: time.Second})
	_, err := c.Complete(context.Background(), &provider.Request{Credential: "sk-test", Instruction: "hi"})
	assert.ErrorIs(t, err, common.ErrTransport)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(config.CompletionConfig{})
	assert.Equal(t, "gpt-4o", c.GetModel())
}

func TestBuildMessages_TextOnly(t *testing.T) {
	msgs := buildMessages(&provider.Request{Instruction: "hello"})
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	require.Len(t, msgs[0].Content, 1)
	assert.Nil(t, msgs[0].Content[0].ImageURL)
}

func TestSanitizeResponse(t *testing.T) {
	body := `{"echo":"data:image/png;base64,iVBORw0KGgo="}`
	assert.Equal(t, `{"echo":"[IMAGE_DATA_REMOVED]"}`, sanitizeResponse([]byte(body)))

	long := sanitizeResponse([]byte(strings.Repeat("x", 2000)))
	assert.Len(t, long, maxLoggedBody+3)
}
