package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/embedders"
	"github.com/cortexkit/neuromem/pkg/logger"
	"github.com/cortexkit/neuromem/pkg/metrics"
	"github.com/cortexkit/neuromem/pkg/persistence"
	"github.com/cortexkit/neuromem/pkg/types"
)

func newTestStore(t *testing.T, cfg *config.VectorStoreConfig) (*VectorStore, *embedders.MockEmbedder) {
	t.Helper()
	if cfg == nil {
		cfg = config.NewVectorStoreConfig()
	}
	embedder := embedders.NewMockEmbedder(64)
	vs, err := NewVectorStore(cfg, embedder, persistence.NewMemoryCollection(), logger.NewTestLogger(), metrics.NewNoOpMetrics())
	require.NoError(t, err)
	t.Cleanup(func() { vs.Close() })
	return vs, embedder
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		v := types.EmbeddingVector{1, 2, 3}
		assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		a := types.EmbeddingVector{1, 0}
		b := types.EmbeddingVector{0, 1}
		assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
	})

	t.Run("opposite vectors", func(t *testing.T) {
		a := types.EmbeddingVector{1, 1}
		b := types.EmbeddingVector{-1, -1}
		assert.InDelta(t, -1.0, CosineSimilarity(a, b), 1e-9)
	})

	t.Run("zero norm yields zero", func(t *testing.T) {
		a := types.EmbeddingVector{0, 0, 0}
		b := types.EmbeddingVector{1, 2, 3}
		assert.Equal(t, 0.0, CosineSimilarity(a, b))
		assert.Equal(t, 0.0, CosineSimilarity(b, a))
	})

	t.Run("length mismatch yields zero", func(t *testing.T) {
		a := types.EmbeddingVector{1, 2}
		b := types.EmbeddingVector{1, 2, 3}
		assert.Equal(t, 0.0, CosineSimilarity(a, b))
	})
}

func TestVectorStoreAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("stores qualifying content", func(t *testing.T) {
		vs, _ := newTestStore(t, nil)
		id, err := vs.Add(ctx, "The sky is blue", nil, types.SentimentNeutral)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Equal(t, 1, vs.Count())
	})

	t.Run("drops short content silently", func(t *testing.T) {
		vs, _ := newTestStore(t, nil)
		id, err := vs.Add(ctx, "hey", nil, types.SentimentNeutral)
		assert.NoError(t, err)
		assert.Empty(t, id)
		assert.Equal(t, 0, vs.Count())
	})

	t.Run("embedding failure drops silently", func(t *testing.T) {
		vs, embedder := newTestStore(t, nil)
		embedder.FailFor = func(text string) bool { return true }
		id, err := vs.Add(ctx, "this will not embed", nil, types.SentimentNeutral)
		assert.NoError(t, err)
		assert.Empty(t, id)
		assert.Equal(t, 0, vs.Count())
	})

	t.Run("unknown sentiment tag is dropped", func(t *testing.T) {
		vs, _ := newTestStore(t, nil)
		id, err := vs.Add(ctx, "memories have feelings", nil, types.Sentiment("ecstatic"))
		require.NoError(t, err)
		doc, err := vs.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.Sentiment(""), doc.Sentiment)
	})
}

func TestVectorStoreFIFOEviction(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewVectorStoreConfig()
	cfg.MaxDocuments = 3
	vs, _ := newTestStore(t, cfg)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := vs.Add(ctx, fmt.Sprintf("memory number %d about things", i), nil, types.SentimentNeutral)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Equal(t, 3, vs.Count())

	// The two oldest documents were evicted
	for _, id := range ids[:2] {
		_, err := vs.Get(ctx, id)
		assert.Error(t, err)
	}
	for _, id := range ids[2:] {
		_, err := vs.Get(ctx, id)
		assert.NoError(t, err)
	}
}

func TestVectorStoreSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("most similar document ranks first", func(t *testing.T) {
		vs, _ := newTestStore(t, nil)
		_, err := vs.Add(ctx, "The sky is blue", nil, types.SentimentNeutral)
		require.NoError(t, err)
		_, err = vs.Add(ctx, "I really like pizza", nil, types.SentimentPositive)
		require.NoError(t, err)
		_, err = vs.Add(ctx, "Cats are mammals", nil, types.SentimentNeutral)
		require.NoError(t, err)

		results, err := vs.Search(ctx, "what color is the sky", 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "The sky is blue", results[0].Document.Content)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("topK truncates", func(t *testing.T) {
		vs, _ := newTestStore(t, nil)
		for i := 0; i < 4; i++ {
			_, err := vs.Add(ctx, fmt.Sprintf("fact number %d about the weather", i), nil, types.SentimentNeutral)
			require.NoError(t, err)
		}
		results, err := vs.Search(ctx, "weather facts", 2)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("failed query embedding returns empty, not error", func(t *testing.T) {
		vs, embedder := newTestStore(t, nil)
		_, err := vs.Add(ctx, "something worth recalling", nil, types.SentimentNeutral)
		require.NoError(t, err)

		embedder.FailFor = func(text string) bool { return text == "broken query" }
		results, err := vs.Search(ctx, "broken query", 3)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("empty store returns empty", func(t *testing.T) {
		vs, _ := newTestStore(t, nil)
		results, err := vs.Search(ctx, "anything at all", 3)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestVectorStoreSearchIsReadOnly(t *testing.T) {
	ctx := context.Background()
	vs, _ := newTestStore(t, nil)

	id, err := vs.Add(ctx, "the sky is blue today", nil, types.SentimentNeutral)
	require.NoError(t, err)

	t.Run("scoring never writes through the stored document", func(t *testing.T) {
		results, err := vs.Search(ctx, "sky", 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Greater(t, results[0].Document.TemporalWeight, 0.0)

		stored, err := vs.Get(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, stored.TemporalWeight)
		assert.NotSame(t, stored, results[0].Document)
	})

	t.Run("concurrent searches", func(t *testing.T) {
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_, err := vs.Search(ctx, "sky", 5)
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()
	})
}

func TestVectorStoreDecay(t *testing.T) {
	cfg := config.NewVectorStoreConfig()
	vs, _ := newTestStore(t, cfg)

	t.Run("fresh document has full weight", func(t *testing.T) {
		assert.InDelta(t, 1.0, vs.decayFactor(0), 1e-9)
	})

	t.Run("weight decreases monotonically with age", func(t *testing.T) {
		prev := vs.decayFactor(0)
		for hours := 1; hours <= 12; hours++ {
			cur := vs.decayFactor(time.Duration(hours) * time.Hour)
			assert.LessOrEqual(t, cur, prev)
			prev = cur
		}
	})

	t.Run("weight never drops below the floor", func(t *testing.T) {
		assert.InDelta(t, cfg.DecayFloor, vs.decayFactor(1000*time.Hour), 1e-9)
	})

	t.Run("future timestamps clamp to full weight", func(t *testing.T) {
		assert.InDelta(t, 1.0, vs.decayFactor(-time.Hour), 1e-9)
	})

	t.Run("recency breaks similarity ties", func(t *testing.T) {
		ctx := context.Background()
		fresh, err := vs.Add(ctx, "identical tie content", nil, types.SentimentNeutral)
		require.NoError(t, err)

		// Age the first copy by backdating it directly
		vs.memMu.Lock()
		vs.documents[fresh].Timestamp = time.Now().Add(-10 * time.Hour)
		vs.memMu.Unlock()

		newer, err := vs.Add(ctx, "identical tie content", nil, types.SentimentNeutral)
		require.NoError(t, err)

		results, err := vs.Search(ctx, "identical tie content", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, newer, results[0].Document.ID)
		assert.Equal(t, fresh, results[1].Document.ID)
	})
}

func TestVectorStoreLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("delete removes the document", func(t *testing.T) {
		vs, _ := newTestStore(t, nil)
		id, err := vs.Add(ctx, "soon to be forgotten", nil, types.SentimentNeutral)
		require.NoError(t, err)
		require.NoError(t, vs.Delete(ctx, id))
		assert.Equal(t, 0, vs.Count())
		_, err = vs.Get(ctx, id)
		assert.Error(t, err)
	})

	t.Run("clear empties the store", func(t *testing.T) {
		vs, _ := newTestStore(t, nil)
		for i := 0; i < 3; i++ {
			_, err := vs.Add(ctx, fmt.Sprintf("bulk entry %d for clearing", i), nil, types.SentimentNeutral)
			require.NoError(t, err)
		}
		require.NoError(t, vs.Clear(ctx))
		assert.Equal(t, 0, vs.Count())
	})

	t.Run("closed store rejects writes", func(t *testing.T) {
		vs, _ := newTestStore(t, nil)
		require.NoError(t, vs.Close())
		_, err := vs.Add(ctx, "after the lights went out", nil, types.SentimentNeutral)
		assert.Error(t, err)
	})
}

func TestVectorStorePersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	coll := persistence.NewMemoryCollection()
	embedder := embedders.NewMockEmbedder(64)
	log := logger.NewTestLogger()

	vs, err := NewVectorStore(config.NewVectorStoreConfig(), embedder, coll, log, metrics.NewNoOpMetrics())
	require.NoError(t, err)

	first, err := vs.Add(ctx, "persisted across restarts", nil, types.SentimentNeutral)
	require.NoError(t, err)
	_, err = vs.Add(ctx, "another stored thought", nil, types.SentimentNeutral)
	require.NoError(t, err)
	require.NoError(t, vs.Close())

	reopened, err := NewVectorStore(config.NewVectorStoreConfig(), embedder, coll, log, metrics.NewNoOpMetrics())
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.Count())
	doc, err := reopened.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "persisted across restarts", doc.Content)
}
