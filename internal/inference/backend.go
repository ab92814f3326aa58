package inference

import (
	"context"
	"fmt"
	"strings"
)

// Response statuses reported by a Backend.
const (
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
)

// Incomplete reasons.
const (
	ReasonMaxOutputTokens = "max_output_tokens"
	ReasonContentFilter   = "content_filter"
)

// Segment types that carry text.
const (
	SegmentOutputText = "output_text"
	SegmentReasoning  = "reasoning"
)

// Request is one call to a text-generation service.
type Request struct {
	Model           string
	Instructions    string
	Input           string
	ReasoningEffort string
	Verbosity       string
	MaxOutputTokens int
}

// Segment is one typed piece of a response's output array.
type Segment struct {
	Type string
	Text string
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is what a Backend returns for a call that reached the service.
type Response struct {
	ID               string
	Model            string
	Status           string
	IncompleteReason string
	ErrorCode        string
	ErrorMessage     string
	Output           []Segment
	Usage            Usage
}

// Text concatenates every output_text segment.
func (r *Response) Text() string {
	var b strings.Builder
	for _, seg := range r.Output {
		if seg.Type != SegmentOutputText {
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Backend performs a single request. Transport failures should be returned
// as *Error so the client can classify them; responses that reached the
// service are returned even when their status is not completed.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f.
func (f BackendFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// classifyResponse turns a non-completed response into an error.
func classifyResponse(model string, resp *Response) error {
	switch resp.Status {
	case StatusCompleted, "":
		return nil
	case StatusIncomplete:
		if resp.IncompleteReason == ReasonMaxOutputTokens {
			return NewError(KindTruncated, model, fmt.Errorf("output truncated at token limit"))
		}
		return NewError(KindFatal, model, fmt.Errorf("response incomplete: %s", resp.IncompleteReason))
	case StatusFailed:
		kind := KindFatal
		switch resp.ErrorCode {
		case "rate_limit_exceeded":
			kind = KindRateLimited
		case "server_error", "service_unavailable":
			kind = KindUnavailable
		case "model_not_found", "unsupported_model":
			kind = KindModelUnsupported
		}
		return NewError(kind, model, fmt.Errorf("response failed: %s %s", resp.ErrorCode, resp.ErrorMessage))
	default:
		return NewError(KindUnavailable, model, fmt.Errorf("unexpected response status %q", resp.Status))
	}
}
