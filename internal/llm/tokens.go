package llm

import (
	"context"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures and trims text in model tokens.
type TokenCounter interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

// LoadTokenCounter returns a tiktoken counter for model. The encoding may be
// downloaded on first use, so loading stops when ctx is done; a counter that
// cannot be loaded in time (offline, unknown model) falls back to
// ApproxCounter. Set TIKTOKEN_CACHE_DIR to keep the encoding between runs.
func LoadTokenCounter(ctx context.Context, model string) TokenCounter {
	return loadCounter(ctx, func() (TokenCounter, error) {
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		}
		if err != nil {
			return nil, err
		}
		return tiktokenCounter{enc: enc}, nil
	})
}

type counterResult struct {
	counter TokenCounter
	err     error
}

func loadCounter(ctx context.Context, load func() (TokenCounter, error)) TokenCounter {
	done := make(chan counterResult, 1)
	go func() {
		c, err := load()
		done <- counterResult{counter: c, err: err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			slog.Warn("token encoding unavailable, estimating tokens", "error", r.err)
			return ApproxCounter{}
		}
		return r.counter
	case <-ctx.Done():
		slog.Warn("token encoding load timed out, estimating tokens", "error", ctx.Err())
		return ApproxCounter{}
	}
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t tiktokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}

// ApproxCounter estimates four characters per token.
type ApproxCounter struct{}

const charsPerToken = 4

func (ApproxCounter) Count(text string) int {
	n := len([]rune(text))
	return (n + charsPerToken - 1) / charsPerToken
}

func (ApproxCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	runes := []rune(text)
	limit := maxTokens * charsPerToken
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
