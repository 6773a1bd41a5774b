package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
)

// TextSource turns a PDF into plain text.
type TextSource interface {
	Text(ctx context.Context, document []byte) (string, error)
}

func (c *Client) Name() string { return Name }

// Extract runs the prompt over the document's text in JSON-object mode.
func (c *Client) Extract(ctx context.Context, prompt string, document []byte, mimeType string) (string, error) {
	if !llm.SupportsMIME(mimeType, constants.MimePDF) {
		return "", llm.NewAdapterError(Name, 0, fmt.Errorf("%w: %s", llm.ErrUnsupportedMIME, mimeType))
	}
	if c.text == nil {
		return "", llm.NewAdapterError(Name, 0, errors.New("no text source configured"))
	}

	rid := uuid.New().String()
	start := time.Now()

	text, err := c.text.Text(ctx, document)
	if err != nil {
		c.logger.Error("llm.openai.text_error", "req_id", rid, "error", err)
		return "", llm.NewAdapterError(Name, 0, fmt.Errorf("pdf text: %w", err))
	}
	if strings.TrimSpace(text) == "" {
		return "", llm.NewAdapterError(Name, 0, errors.New("pdf has no extractable text"))
	}

	c.logger.Info("llm.openai.request",
		"req_id", rid,
		"model", c.cfg.Model,
		"text_len", len(text),
	)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(llm.OpenAISystemPrompt),
			openai.UserMessage(prompt + "\n\n" + text),
		},
		MaxTokens: openai.Int(c.cfg.MaxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Error("llm.openai.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.NewAdapterError(Name, 0, llm.ErrEmptyResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", llm.NewAdapterError(Name, 0, llm.ErrEmptyResponse)
	}
	c.logger.Info("llm.openai.ok",
		"req_id", rid,
		"chars", len(content),
		"finish_reason", resp.Choices[0].FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		ae := llm.NewAdapterError(Name, apiErr.StatusCode, err)
		if apiErr.Response != nil {
			ae.RetryAfter = llm.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		if apiErr.Message != "" {
			ae.Err = errors.New(apiErr.Message)
		}
		return ae
	}
	return llm.NewAdapterError(Name, 0, err)
}

var _ llm.Extractor = (*Client)(nil)
