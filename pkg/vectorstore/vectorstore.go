// Package vectorstore implements the persistent, similarity-searchable
// memory store. Documents are ranked by a blend of cosine similarity
// and temporal recency, and the store is capped with FIFO eviction.
package vectorstore

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/normalize"
	"github.com/cortexkit/neuromem/pkg/types"
)

// VectorStore is a durable, queryable cache of textual memories
type VectorStore struct {
	config     *config.VectorStoreConfig
	embedder   interfaces.Embedder
	collection interfaces.Collection
	normalizer *normalize.Normalizer
	logger     interfaces.Logger
	metrics    interfaces.Metrics

	documents map[string]*types.VectorDocument
	order     []string // insertion order, oldest first
	memMu     sync.RWMutex
	closed    bool
}

// NewVectorStore creates a vector store and loads any persisted
// documents from the collection
func NewVectorStore(cfg *config.VectorStoreConfig, embedder interfaces.Embedder, collection interfaces.Collection, logger interfaces.Logger, metrics interfaces.Metrics) (*VectorStore, error) {
	if cfg == nil {
		cfg = config.NewVectorStoreConfig()
	}

	vs := &VectorStore{
		config:     cfg,
		embedder:   embedder,
		collection: collection,
		normalizer: normalize.New(),
		logger:     logger,
		metrics:    metrics,
		documents:  make(map[string]*types.VectorDocument),
	}

	if err := vs.load(context.Background()); err != nil {
		return nil, err
	}
	return vs, nil
}

func (vs *VectorStore) load(ctx context.Context) error {
	records, err := vs.collection.GetAll(ctx)
	if err != nil {
		return errors.NewStorageErrorWithCause("failed to load vector documents", err)
	}

	docs := make([]*types.VectorDocument, 0, len(records))
	for id, raw := range records {
		var doc types.VectorDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			vs.logger.Warn("Skipping unreadable vector document", map[string]interface{}{
				"document_id": id,
			})
			continue
		}
		if len(doc.Embedding) == 0 {
			continue
		}
		docs = append(docs, &doc)
	}

	// Persisted records carry no order; reconstruct it from timestamps
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Timestamp.Before(docs[j].Timestamp)
	})

	vs.memMu.Lock()
	defer vs.memMu.Unlock()
	for _, doc := range docs {
		vs.documents[doc.ID] = doc
		vs.order = append(vs.order, doc.ID)
	}

	if len(docs) > 0 {
		vs.logger.Info("Loaded vector documents", map[string]interface{}{
			"count": len(docs),
		})
	}
	return nil
}

// Add stores content with its embedding. Content shorter than the
// configured minimum (after formatting is stripped) is silently dropped,
// as is content the embedding gateway returns an empty vector for.
// Returns the new document id, or empty string when the write was
// rejected.
func (vs *VectorStore) Add(ctx context.Context, content string, metadata map[string]interface{}, sentiment types.Sentiment) (string, error) {
	if vs.isClosed() {
		return "", errors.NewMemoryError("vector store is closed")
	}

	start := time.Now()
	defer func() {
		if vs.metrics != nil {
			vs.metrics.Timer("vectorstore_add_duration", float64(time.Since(start).Milliseconds()), nil)
		}
	}()

	flat := vs.normalizer.Flatten(content)
	if len(flat) < vs.config.MinContentLength {
		vs.logger.Debug("Dropping underlength content", map[string]interface{}{
			"length": len(flat),
		})
		return "", nil
	}

	if !sentiment.IsValid() {
		vs.logger.Warn("Dropping unknown sentiment tag", map[string]interface{}{
			"sentiment": string(sentiment),
		})
		sentiment = ""
	}

	embedding, err := vs.embedder.Embed(ctx, flat)
	if err != nil {
		vs.logger.Error("Embedding gateway failed, dropping write", err, map[string]interface{}{
			"content_length": len(flat),
		})
		if vs.metrics != nil {
			vs.metrics.Counter("vectorstore_embed_errors", 1, nil)
		}
		return "", nil
	}
	if len(embedding) == 0 {
		vs.logger.Debug("Embedding gateway returned empty vector, dropping write", nil)
		return "", nil
	}

	doc := &types.VectorDocument{
		ID:        types.NewID(),
		Content:   flat,
		Embedding: embedding,
		Metadata:  metadata,
		Timestamp: time.Now(),
		Sentiment: sentiment,
	}

	vs.memMu.Lock()
	vs.documents[doc.ID] = doc
	vs.order = append(vs.order, doc.ID)
	evicted := vs.enforceCapacityLocked()
	vs.memMu.Unlock()

	vs.persist(ctx, doc)
	for _, id := range evicted {
		if err := vs.collection.Delete(ctx, id); err != nil {
			vs.logger.Error("Failed to delete evicted document", err, map[string]interface{}{
				"document_id": id,
			})
		}
	}

	if vs.metrics != nil {
		vs.metrics.Counter("vectorstore_add_count", 1, nil)
		if len(evicted) > 0 {
			vs.metrics.Counter("vectorstore_evictions", float64(len(evicted)), nil)
		}
	}

	return doc.ID, nil
}

// enforceCapacityLocked evicts oldest documents past the cap; must be
// called with memMu held. Returns the evicted ids.
func (vs *VectorStore) enforceCapacityLocked() []string {
	var evicted []string
	for len(vs.order) > vs.config.MaxDocuments {
		oldest := vs.order[0]
		vs.order = vs.order[1:]
		delete(vs.documents, oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

func (vs *VectorStore) persist(ctx context.Context, doc *types.VectorDocument) {
	data, err := json.Marshal(doc)
	if err != nil {
		vs.logger.Error("Failed to serialize document", err, map[string]interface{}{
			"document_id": doc.ID,
		})
		return
	}
	if err := vs.collection.Put(ctx, doc.ID, data); err != nil {
		vs.logger.Error("Failed to persist document", err, map[string]interface{}{
			"document_id": doc.ID,
		})
	}
}

// Search embeds the query and returns the topK documents ranked by
// blended score. A failed or empty query embedding yields an empty
// result, never an error.
func (vs *VectorStore) Search(ctx context.Context, query string, topK int) ([]*types.ScoredDocument, error) {
	if vs.isClosed() {
		return nil, errors.NewMemoryError("vector store is closed")
	}
	if topK <= 0 {
		topK = vs.config.TopK
	}

	start := time.Now()
	defer func() {
		if vs.metrics != nil {
			vs.metrics.Timer("vectorstore_search_duration", float64(time.Since(start).Milliseconds()), nil)
		}
	}()

	queryVec, err := vs.embedder.Embed(ctx, query)
	if err != nil {
		vs.logger.Error("Query embedding failed, returning empty result", err, nil)
		return []*types.ScoredDocument{}, nil
	}
	if len(queryVec) == 0 {
		return []*types.ScoredDocument{}, nil
	}

	vs.memMu.RLock()
	defer vs.memMu.RUnlock()

	now := time.Now()
	scored := make([]*types.ScoredDocument, 0, len(vs.documents))
	// Iterate in insertion order so the stable sort breaks ties that way
	for _, id := range vs.order {
		doc := vs.documents[id]
		similarity := CosineSimilarity(queryVec, doc.Embedding)
		decay := vs.decayFactor(now.Sub(doc.Timestamp))
		// Score into a copy so concurrent searches never write through
		// the shared document.
		snapshot := *doc
		snapshot.TemporalWeight = decay
		scored = append(scored, &types.ScoredDocument{
			Document: &snapshot,
			Score:    vs.config.SimilarityWeight*similarity + vs.config.RecencyWeight*decay,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (vs *VectorStore) decayFactor(age time.Duration) float64 {
	ageHours := age.Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Max(vs.config.DecayFloor, 1-ageHours*vs.config.DecayPerHour)
}

// Get retrieves a document by id
func (vs *VectorStore) Get(ctx context.Context, id string) (*types.VectorDocument, error) {
	if vs.isClosed() {
		return nil, errors.NewMemoryError("vector store is closed")
	}

	vs.memMu.RLock()
	defer vs.memMu.RUnlock()

	doc, ok := vs.documents[id]
	if !ok {
		return nil, errors.NewMemoryNotFoundError(id)
	}
	return doc, nil
}

// GetAll returns every stored document in insertion order
func (vs *VectorStore) GetAll(ctx context.Context) ([]*types.VectorDocument, error) {
	if vs.isClosed() {
		return nil, errors.NewMemoryError("vector store is closed")
	}

	vs.memMu.RLock()
	defer vs.memMu.RUnlock()

	out := make([]*types.VectorDocument, 0, len(vs.order))
	for _, id := range vs.order {
		out = append(out, vs.documents[id])
	}
	return out, nil
}

// Delete removes one document
func (vs *VectorStore) Delete(ctx context.Context, id string) error {
	if vs.isClosed() {
		return errors.NewMemoryError("vector store is closed")
	}

	vs.memMu.Lock()
	if _, ok := vs.documents[id]; ok {
		delete(vs.documents, id)
		for i, oid := range vs.order {
			if oid == id {
				vs.order = append(vs.order[:i], vs.order[i+1:]...)
				break
			}
		}
	}
	vs.memMu.Unlock()

	if err := vs.collection.Delete(ctx, id); err != nil {
		return errors.NewStorageErrorWithCause("failed to delete document", err)
	}
	return nil
}

// Count returns the number of stored documents
func (vs *VectorStore) Count() int {
	vs.memMu.RLock()
	defer vs.memMu.RUnlock()
	return len(vs.documents)
}

// Clear empties the store entirely
func (vs *VectorStore) Clear(ctx context.Context) error {
	if vs.isClosed() {
		return errors.NewMemoryError("vector store is closed")
	}

	vs.memMu.Lock()
	count := len(vs.documents)
	vs.documents = make(map[string]*types.VectorDocument)
	vs.order = nil
	vs.memMu.Unlock()

	if err := vs.collection.Clear(ctx); err != nil {
		return errors.NewStorageErrorWithCause("failed to clear collection", err)
	}

	vs.logger.Info("Cleared vector store", map[string]interface{}{
		"count": count,
	})
	return nil
}

// Close closes the store
func (vs *VectorStore) Close() error {
	vs.memMu.Lock()
	defer vs.memMu.Unlock()
	vs.closed = true
	return nil
}

func (vs *VectorStore) isClosed() bool {
	vs.memMu.RLock()
	defer vs.memMu.RUnlock()
	return vs.closed
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Mismatched lengths or a zero-norm vector yield 0, never NaN.
func CosineSimilarity(a, b types.EmbeddingVector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ interfaces.VectorIndexer = (*VectorStore)(nil)
