package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeUpserter struct{ reqs []*qdrant.UpsertPoints }

func (f *fakeUpserter) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.reqs = append(f.reqs, req)
	return &qdrant.UpdateResult{}, nil
}

func TestAddDocument_UpsertsWithPayload(t *testing.T) {
	up := &fakeUpserter{}
	s := &Store{points: up, embedder: fakeEmbedder{}, collection: "standups", dim: 3, log: zerolog.Nop()}
	meta := map[string]any{"type": "standup", "id": int64(9), "userId": int64(3), "sprintId": int64(2), "createdAt": "2025-03-03T09:00:00Z"}

	require.NoError(t, s.AddDocument(context.Background(), "shipped login", meta))
	require.NoError(t, s.AddDocument(context.Background(), "shipped login v2", meta))

	require.Len(t, up.reqs, 2)
	req := up.reqs[0]
	assert.Equal(t, "standups", req.CollectionName)
	require.Len(t, req.Points, 1)
	p := req.Points[0].Payload
	assert.Equal(t, "shipped login", p["text"].GetStringValue())
	assert.Equal(t, "standup", p["type"].GetStringValue())
	assert.Equal(t, int64(3), p["userId"].GetIntegerValue())
	assert.Equal(t, "2025-03-03T09:00:00Z", p["createdAt"].GetStringValue())
	// same type+id maps to the same point
	assert.Equal(t, req.Points[0].Id.GetUuid(), up.reqs[1].Points[0].Id.GetUuid())
}

func TestAddDocument_EmbedFailure(t *testing.T) {
	up := &fakeUpserter{}
	s := &Store{points: up, embedder: fakeEmbedder{err: errors.New("quota")}, collection: "c", log: zerolog.Nop()}
	err := s.AddDocument(context.Background(), "x", map[string]any{"type": "standup", "id": int64(1)})
	require.Error(t, err)
	assert.Empty(t, up.reqs)
}

func TestAddDocument_DimensionMismatch(t *testing.T) {
	up := &fakeUpserter{}
	s := &Store{points: up, embedder: fakeEmbedder{}, collection: "standups", dim: 3072, log: zerolog.Nop()}
	err := s.AddDocument(context.Background(), "x", map[string]any{"type": "standup", "id": int64(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 3072")
	assert.Empty(t, up.reqs)
}

func TestCreateCollection_UsesConfiguredDimension(t *testing.T) {
	assert.Equal(t, 1536, vectorSize(config.Config{}))
	dim := vectorSize(config.Config{OpenAIEmbeddingDim: 3072})
	req := createCollection("standups", dim)
	assert.Equal(t, "standups", req.CollectionName)
	assert.Equal(t, uint64(3072), req.VectorsConfig.GetParams().GetSize())
}
