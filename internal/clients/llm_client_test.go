package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replyJSON(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	})
	return string(body)
}

func newTestClient(url string) *OpenAICompatibleClient {
	return NewOpenAICompatibleClient(LLMConfig{
		APIURL:      url,
		APIKey:      "test-key",
		Temperature: DefaultTemperature,
		RetryDelay:  time.Millisecond,
	}, nil)
}

func TestDecide_SendsChatCompletion(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(replyJSON("  BUY BTC 1000\n")))
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL).Decide(context.Background(), "persona text", "market text")

	require.NoError(t, err)
	assert.Equal(t, "BUY BTC 1000", reply)
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, 0.8, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, message{Role: "system", Content: "persona text"}, got.Messages[0])
	assert.Equal(t, message{Role: "user", Content: "market text"}, got.Messages[1])
}

func TestDecide_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(replyJSON("HOLD")))
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL).Decide(context.Background(), "p", "u")

	require.NoError(t, err)
	assert.Equal(t, "HOLD", reply)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDecide_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Decide(context.Background(), "p", "u")

	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDecide_EmptyKey(t *testing.T) {
	client := NewOpenAICompatibleClient(LLMConfig{APIURL: "http://127.0.0.1:0"}, nil)

	_, err := client.Decide(context.Background(), "p", "u")

	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}

func TestDecide_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(replyJSON("   ")))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Decide(context.Background(), "p", "u")

	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestDecide_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL).Decide(ctx, "p", "u")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
