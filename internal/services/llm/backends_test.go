package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestOpenAIBackend(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"情绪评分: 2"},"finish_reason":"stop"}]}`,
			want:   "情绪评分: 2",
		},
		{
			name:    "auth",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantErr: ErrLLMAuth,
		},
		{
			name:    "quota",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			wantErr: ErrLLMQuota,
		},
		{
			name:    "rate limit",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			wantErr: errTransient,
		},
		{
			name:    "empty choices",
			status:  http.StatusOK,
			body:    `{"id":"c1","object":"chat.completion","choices":[]}`,
			wantErr: errEmptyResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			backend, err := NewOpenAIBackend("test-key", server.URL, "deepseek-chat", 0.7, arbor.NewLogger())
			require.NoError(t, err)

			text, err := backend.Complete(context.Background(), "You are a professional financial analyst.", "context")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
			assert.Equal(t, "deepseek-chat", got.Model)
			require.Len(t, got.Messages, 2)
			assert.Equal(t, "system", got.Messages[0].Role)
			assert.Equal(t, "context", got.Messages[1].Content)
		})
	}
}

func TestClaudeBackend(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",` +
				`"content":[{"type":"text","text":"Sentiment: -1"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`,
			want: "Sentiment: -1",
		},
		{
			name:    "auth",
			status:  http.StatusUnauthorized,
			body:    `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantErr: ErrLLMAuth,
		},
		{
			name:    "overloaded",
			status:  529,
			body:    `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			wantErr: errTransient,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				assert.Equal(t, "/v1/messages", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			backend, err := NewClaudeBackend("test-key", "claude-sonnet-4-20250514", 1024, 0.7, server.URL, arbor.NewLogger())
			require.NoError(t, err)

			text, err := backend.Complete(context.Background(), "system", "context")
			assert.Equal(t, 1, calls, "sdk retries disabled")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestGeminiBackend(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"role":"model","parts":[{"text":"## 观点\n偏暖。\n\n情绪评分: 2"}]},"finishReason":"STOP"}]}`,
			want:   "## 观点\n偏暖。\n\n情绪评分: 2",
		},
		{
			name:    "no candidates",
			status:  http.StatusOK,
			body:    `{"candidates":[]}`,
			wantErr: errEmptyResponse,
		},
		{
			name:    "auth",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"code":401,"message":"API key not valid. Please pass a valid API key.","status":"UNAUTHENTICATED"}}`,
			wantErr: ErrLLMAuth,
		},
		{
			name:    "daily quota",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"code":429,"message":"Quota exceeded for metric: GenerateRequestsPerDayPerProjectPerModel-FreeTier","status":"RESOURCE_EXHAUSTED"}}`,
			wantErr: ErrLLMQuota,
		},
		{
			name:    "unavailable",
			status:  http.StatusServiceUnavailable,
			body:    `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`,
			wantErr: errTransient,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				SystemInstruction struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"systemInstruction"`
				Contents []struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"contents"`
			}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent"), r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			backend, err := NewGeminiBackend(context.Background(), "test-key", "gemini-2.5-flash", 0.7, server.URL, arbor.NewLogger())
			require.NoError(t, err)

			text, err := backend.Complete(context.Background(), "你是一名专业的基金分析师。", "context")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.wantErr != errTransient && tt.wantErr != errEmptyResponse, !retryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
			require.Len(t, got.SystemInstruction.Parts, 1)
			assert.Equal(t, "你是一名专业的基金分析师。", got.SystemInstruction.Parts[0].Text)
			require.Len(t, got.Contents, 1)
			assert.Equal(t, "context", got.Contents[0].Parts[0].Text)
		})
	}
}

func TestNewBackend_MissingKey(t *testing.T) {
	_, err := NewOpenAIBackend("", "", "gpt-4o-mini", 0.7, arbor.NewLogger())
	assert.ErrorIs(t, err, ErrLLMAuth)
	_, err = NewClaudeBackend("", "claude", 0, 0, "", arbor.NewLogger())
	assert.ErrorIs(t, err, ErrLLMAuth)
	_, err = NewGeminiBackend(context.Background(), "", "gemini-2.5-flash", 0.7, "", arbor.NewLogger())
	assert.ErrorIs(t, err, ErrLLMAuth)
}
