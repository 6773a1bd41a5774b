package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
)

func TestExtractImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "gk", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Equal(t, "image/png", req.Contents[0].Parts[0].InlineData.MimeType)
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"apartments\":"},{"text":"[]}"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "gk", BaseURL: server.URL}, nil)
	out, err := c.Extract(context.Background(), "prompt", []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, `{"apartments":[]}`, out)
}

func TestExtractServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend down","status":"INTERNAL"}}`))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "gk", BaseURL: server.URL}, nil)
	_, err := c.Extract(context.Background(), "prompt", []byte("%PDF"), "application/pdf")
	require.Error(t, err)

	var ae *llm.AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, Name, ae.Provider)
	assert.Equal(t, http.StatusInternalServerError, ae.StatusCode)
	assert.False(t, ae.RateLimited())
	assert.Contains(t, err.Error(), "backend down")
}

func TestExtractNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "gk", BaseURL: server.URL}, nil)
	_, err := c.Extract(context.Background(), "prompt", []byte("%PDF"), "application/pdf")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestExtractUnsupportedMIME(t *testing.T) {
	c := NewClient(Config{APIKey: "gk", BaseURL: "http://127.0.0.1:0"}, nil)
	_, err := c.Extract(context.Background(), "prompt", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, llm.ErrUnsupportedMIME)
}
