package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
)

type fakeText struct {
	text string
	err  error
}

func (f fakeText) Text(context.Context, []byte) (string, error) { return f.text, f.err }

const completion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"apartments\":[{\"apartmentNumber\":\"3\"}]}"}
  }]
}`

func TestExtractJSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

		msgs, ok := body["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)
		user := msgs[1].(map[string]any)
		assert.Contains(t, user["content"], "דירה 3")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, fakeText{text: "דירה 3 חשמל"}, nil)
	out, err := c.Extract(context.Background(), "extract", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, `{"apartments":[{"apartmentNumber":"3"}]}`, out)
}

func TestExtractRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, fakeText{text: "text"}, nil)
	_, err := c.Extract(context.Background(), "extract", []byte("%PDF"), "application/pdf")
	require.Error(t, err)

	var ae *llm.AdapterError
	require.True(t, errors.As(err, &ae))
	assert.True(t, ae.RateLimited())
	assert.Equal(t, 3*time.Second, ae.RetryAfter)
}

func TestExtractTextFailure(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-test", BaseURL: "http://127.0.0.1:0"}, fakeText{err: errors.New("pdftotext missing")}, nil)
	_, err := c.Extract(context.Background(), "extract", []byte("%PDF"), "application/pdf")
	require.Error(t, err)

	var ae *llm.AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, Name, ae.Provider)
	assert.Contains(t, err.Error(), "pdftotext missing")
}

func TestExtractRejectsImages(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-test"}, fakeText{text: "x"}, nil)
	_, err := c.Extract(context.Background(), "extract", []byte{0xff, 0xd8}, "image/jpeg")
	assert.ErrorIs(t, err, llm.ErrUnsupportedMIME)
}
