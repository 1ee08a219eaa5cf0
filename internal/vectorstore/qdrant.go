/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
)

const defaultVectorSize = 1536 // text-embedding-3-small

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type upserter interface {
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
}

// Store indexes analysed documents in a Qdrant collection.
type Store struct {
	client     *qdrant.Client
	points     upserter
	embedder   Embedder
	collection string
	dim        int
	log        zerolog.Logger
}

func vectorSize(cfg config.Config) int {
	if cfg.OpenAIEmbeddingDim > 0 {
		return cfg.OpenAIEmbeddingDim
	}
	return defaultVectorSize
}

func createCollection(name string, dim int) *qdrant.CreateCollection {
	return &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	}
}

// Open connects to Qdrant and creates the collection when missing.
func Open(ctx context.Context, cfg config.Config, embedder Embedder, log zerolog.Logger) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantUseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	exists, err := client.CollectionExists(ctx, cfg.QdrantCollection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant collection check: %w", err)
	}
	dim := vectorSize(cfg)
	if !exists {
		err = client.CreateCollection(ctx, createCollection(cfg.QdrantCollection, dim))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("create collection %s: %w", cfg.QdrantCollection, err)
		}
		log.Info().Str("collection", cfg.QdrantCollection).Int("dim", dim).Msg("qdrant collection created")
	}
	return &Store{client: client, points: client, embedder: embedder, collection: cfg.QdrantCollection, dim: dim, log: log}, nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// AddDocument embeds text and upserts it with metadata as payload. The point
// id is derived from metadata "type" and "id" so re-indexing overwrites.
func (s *Store) AddDocument(ctx context.Context, text string, metadata map[string]any) error {
	if s.embedder == nil {
		return errors.New("vectorstore: no embedder configured")
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if s.dim > 0 && len(vec) != s.dim {
		return fmt.Errorf("embedding has %d dimensions, collection %s expects %d (check OPENAI_EMBEDDING_DIM)", len(vec), s.collection, s.dim)
	}
	raw := map[string]any{"text": text}
	for k, v := range metadata {
		raw[k] = v
	}
	payload, err := qdrant.TryValueMap(raw)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%v:%v", metadata["type"], metadata["id"]))).String()
	_, err = s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(vec...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	s.log.Debug().Str("point", id).Str("collection", s.collection).Msg("document indexed")
	return nil
}
