// Package retrieval answers k-nearest-neighbour queries against the vault index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ragsody/internal/domain"
	"ragsody/internal/embedding"
	"ragsody/internal/index"
	"ragsody/internal/vectorstore"
)

// ErrInvalidK is returned when fewer than one result is requested.
var ErrInvalidK = errors.New("retrieval: k must be at least 1")

// IndexProvider hands out the built index, building it when needed.
type IndexProvider interface {
	EnsureBuilt(ctx context.Context) (*index.Index, error)
}

// Engine returns the documents nearest to a query.
type Engine struct {
	indexes IndexProvider
	logger  *slog.Logger
}

func NewEngine(indexes IndexProvider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{indexes: indexes, logger: logger}
}

// Nearest returns at most k documents ordered by descending similarity to
// vector. Ties keep corpus load order. An empty index yields an empty result.
// A zero vector scores every document equally, so load order decides.
func (e *Engine) Nearest(ctx context.Context, vector []float64, k int) (domain.RetrievalResult, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	idx, err := e.indexes.EnsureBuilt(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Len() > 0 && embedding.IsZero(vector) {
		return lexicalSearch(idx.Documents(), "", k), nil
	}
	return e.search(ctx, idx, vector, k)
}

// NearestText embeds text with the index's embedder and returns its nearest
// documents. Queries with no known terms are ranked lexically.
func (e *Engine) NearestText(ctx context.Context, text string, k int) (domain.RetrievalResult, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	idx, err := e.indexes.EnsureBuilt(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		return domain.RetrievalResult{}, nil
	}
	vec, err := idx.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if embedding.IsZero(vec) {
		e.logger.Debug("query vector is zero, using lexical ranking")
		return lexicalSearch(idx.Documents(), text, k), nil
	}
	return e.search(ctx, idx, vec, k)
}

func (e *Engine) search(ctx context.Context, idx *index.Index, vector []float64, k int) (domain.RetrievalResult, error) {
	if idx.Len() == 0 {
		return domain.RetrievalResult{}, nil
	}
	hits, err := idx.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return normalize(hits, k), nil
}

// normalize de-duplicates hits by document, restores the ordering rules and
// truncates to k.
func normalize(hits []domain.SearchResult, k int) domain.RetrievalResult {
	vectorstore.SortResults(hits)
	seen := make(map[string]struct{}, len(hits))
	out := make(domain.RetrievalResult, 0, min(k, len(hits)))
	for _, h := range hits {
		if _, dup := seen[h.Document.ID]; dup {
			continue
		}
		seen[h.Document.ID] = struct{}{}
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out
}
