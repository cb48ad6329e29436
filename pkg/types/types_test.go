package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentimentIsValid(t *testing.T) {
	for _, s := range []Sentiment{"", SentimentPositive, SentimentNeutral, SentimentNegative, SentimentAnalytical} {
		assert.True(t, s.IsValid(), "sentiment %q", s)
	}
	assert.False(t, Sentiment("euphoric").IsValid())
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestVectorDocumentSerialization(t *testing.T) {
	doc := &VectorDocument{
		ID:             "d1",
		Content:        "serialized thought",
		Embedding:      EmbeddingVector{0.1, 0.2},
		TemporalWeight: 0.9,
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	// TemporalWeight is derived at query time and never persisted
	assert.NotContains(t, string(data), "temporal")

	var decoded VectorDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc.Content, decoded.Content)
	assert.Zero(t, decoded.TemporalWeight)
}
