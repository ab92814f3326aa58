package inference

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend adapts the chat completions API to Backend.
type OpenAIBackend struct {
	client *openai.Client
}

// NewOpenAIBackend builds a backend for apiKey. An empty baseURL uses the
// public endpoint.
func NewOpenAIBackend(apiKey, baseURL string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg)}
}

// Complete issues one chat completion and maps it onto Response.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := systemPrompt(req); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Input,
	})

	request := openai.ChatCompletionRequest{
		Model:               req.Model,
		Messages:            messages,
		MaxCompletionTokens: req.MaxOutputTokens,
	}
	if isReasoningModel(req.Model) {
		request.ReasoningEffort = req.ReasoningEffort
	}

	resp, err := b.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, classifyOpenAIError(req.Model, err)
	}

	out := &Response{
		ID:     resp.ID,
		Model:  resp.Model,
		Status: StatusCompleted,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if len(resp.Choices) == 0 {
		out.Status = StatusFailed
		out.ErrorCode = "server_error"
		out.ErrorMessage = "no completion choices returned"
		return out, nil
	}

	choice := resp.Choices[0]
	switch choice.FinishReason {
	case openai.FinishReasonLength:
		out.Status = StatusIncomplete
		out.IncompleteReason = ReasonMaxOutputTokens
	case openai.FinishReasonContentFilter:
		out.Status = StatusIncomplete
		out.IncompleteReason = ReasonContentFilter
	}
	out.Output = []Segment{{Type: SegmentOutputText, Text: choice.Message.Content}}
	return out, nil
}

// systemPrompt merges instructions with a verbosity hint; chat completions
// has no verbosity parameter.
func systemPrompt(req Request) string {
	parts := make([]string, 0, 2)
	if req.Instructions != "" {
		parts = append(parts, req.Instructions)
	}
	switch req.Verbosity {
	case "low":
		parts = append(parts, "Keep answers brief.")
	case "high":
		parts = append(parts, "Be thorough.")
	}
	return strings.Join(parts, "\n\n")
}

func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") ||
		strings.HasPrefix(m, "o4") || strings.HasPrefix(m, "gpt-5")
}

func classifyOpenAIError(model string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Kind:       kindForStatus(apiErr.HTTPStatusCode, apiErrorCode(apiErr)),
			Model:      model,
			StatusCode: apiErr.HTTPStatusCode,
			RetryAfter: retryAfterHint(apiErr.Message),
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{
			Kind:       kindForStatus(reqErr.HTTPStatusCode, ""),
			Model:      model,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Model: model, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return NewError(KindUnavailable, model, err)
}

func apiErrorCode(apiErr *openai.APIError) string {
	if code, ok := apiErr.Code.(string); ok {
		return code
	}
	return ""
}

func kindForStatus(status int, code string) Kind {
	switch code {
	case "model_not_found", "unsupported_model":
		return KindModelUnsupported
	case "rate_limit_exceeded":
		return KindRateLimited
	}

	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusNotFound:
		return KindModelUnsupported
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindUnavailable
	default:
		return KindFatal
	}
}

var retryAfterPattern = regexp.MustCompile(`(?i)try again in ([0-9]+(?:\.[0-9]+)?)(ms|s|m)\b`)

// retryAfterHint extracts "try again in 1.5s" style hints from an error
// message.
func retryAfterHint(message string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(message)
	if m == nil {
		return 0
	}
	d, err := time.ParseDuration(m[1] + strings.ToLower(m[2]))
	if err != nil {
		return 0
	}
	return d
}

var _ Backend = (*OpenAIBackend)(nil)
