package retrieval

import (
	"context"
	"time"
)

// ContextChunk is a retrieved document fragment with its similarity score.
type ContextChunk struct {
	ID             string
	SourceDocument string
	Page           int
	Text           string
	Score          float32
	CreatedAt      time.Time
}

// Retriever combines embedding and vector search to find relevant document
// chunks for a question.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns the top-K most similar chunks.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(vec, topK)
	if err != nil {
		return nil, err
	}

	return scoredToChunks(scored), nil
}

// Documents reports the distinct source documents currently indexed.
func (r *Retriever) Documents() ([]string, error) {
	return r.store.Documents()
}

func scoredToChunks(scored []ScoredRecord) []ContextChunk {
	chunks := make([]ContextChunk, len(scored))
	for i, s := range scored {
		chunks[i] = ContextChunk{
			ID:             s.ID,
			SourceDocument: s.SourceDocument,
			Page:           s.Page,
			Text:           s.ChunkText,
			Score:          s.Score,
			CreatedAt:      s.CreatedAt,
		}
	}
	return chunks
}
