package vectorstore

import (
	"context"
	"sort"

	"ragsody/internal/domain"
)

// Storage persists document vectors and supports similarity search.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, docs []domain.Document) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
	Clear(ctx context.Context) error
	Len() int
}

// SortResults orders results by descending score, breaking ties by load order.
func SortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.Seq < results[j].Document.Seq
	})
}
