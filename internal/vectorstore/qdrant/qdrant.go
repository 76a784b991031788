package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"ragsody/internal/domain"
	"ragsody/internal/vectorstore"
)

// Storage keeps document vectors in a Qdrant collection.
// It uses cosine distance and recreates the collection on Init.
type Storage struct {
	client     *qdrant.Client
	collection string
	dimension  int
	count      int
}

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection name is required")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Storage{client: client, collection: cfg.Collection}, nil
}

// Init drops any existing collection and creates an empty one. An empty
// corpus (dimension 0) leaves no collection behind.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension < 0 {
		return errors.New("invalid dimension")
	}
	if err := s.Clear(ctx); err != nil {
		return err
	}
	s.dimension = dimension
	if dimension == 0 {
		return nil
	}
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, d := range docs {
		if len(d.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	// Without a vocabulary there is no collection; only the count is kept.
	if s.dimension == 0 {
		s.count += len(docs)
		return nil
	}
	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(d.ID),
			Vectors: qdrant.NewVectors(toFloat32(d.Vector)...),
			Payload: map[string]*qdrant.Value{
				"path":    qdrant.NewValueString(d.Path),
				"content": qdrant.NewValueString(d.Content),
				"seq":     qdrant.NewValueInt(int64(d.Seq)),
			},
		}
	}
	wait := true
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	s.count += len(docs)
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if s.count == 0 || s.dimension == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}
	limit := uint64(topK)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(toFloat32(vector)...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		d := domain.Document{ID: hit.GetId().GetUuid()}
		if v, ok := hit.Payload["path"]; ok {
			d.Path = v.GetStringValue()
		}
		if v, ok := hit.Payload["content"]; ok {
			d.Content = v.GetStringValue()
		}
		if v, ok := hit.Payload["seq"]; ok {
			d.Seq = int(v.GetIntegerValue())
		}
		results = append(results, domain.SearchResult{Document: d, Score: float64(hit.GetScore())})
	}
	vectorstore.SortResults(results)
	return results, nil
}

// Clear drops the collection if it exists.
func (s *Storage) Clear(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}
	s.count = 0
	return nil
}

func (s *Storage) Len() int { return s.count }

// Close releases the underlying gRPC connection.
func (s *Storage) Close() error { return s.client.Close() }

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
