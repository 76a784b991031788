package memory

import (
	"context"
	"errors"
	"sync"

	"ragsody/internal/domain"
	"ragsody/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	docs      []domain.Document
}

func NewStorage() *Storage { return &Storage{} }

// Init resets the store for vectors of the given dimension. A zero dimension
// is accepted for an empty corpus.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension < 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.docs = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, docs []domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if len(d.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, d := range docs {
		replaced := false
		for i := range s.docs {
			if s.docs[i].ID == d.ID {
				s.docs[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			s.docs = append(s.docs, d)
		}
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	// compute cosine similarity (vectors are assumed L2-normalized)
	results := make([]domain.SearchResult, len(s.docs))
	for i := range s.docs {
		results[i] = domain.SearchResult{Document: s.docs[i], Score: dot(s.docs[i].Vector, vector)}
	}
	vectorstore.SortResults(results)
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	return nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
