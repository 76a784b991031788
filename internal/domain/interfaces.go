package domain

import (
	"context"
	"errors"
)

var (
	// ErrCorpusUnavailable reports a vault root that is missing or unreadable.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	// ErrIndexBuild reports a failed index build. The build may be retried.
	ErrIndexBuild = errors.New("index build failed")
)

// Document represents a single note loaded from the vault.
type Document struct {
	ID      string
	Path    string
	Content string
	Vector  []float64
	// Seq is the position of the document in load order and breaks score ties.
	Seq int
}

// SearchResult represents a matching document with a similarity score.
type SearchResult struct {
	Document Document
	Score    float64
}

// RetrievalResult is ordered by descending score with no duplicate documents.
type RetrievalResult []SearchResult

// Documents returns the documents of the result in rank order.
func (r RetrievalResult) Documents() []Document {
	out := make([]Document, len(r))
	for i := range r {
		out[i] = r[i].Document
	}
	return out
}

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f(ctx, prompt).
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
