package retrieval

import "time"

// VectorStore is the interface for chunk storage and similarity search.
// The default implementation is SQLite with brute-force cosine similarity,
// which is comfortable up to roughly 100K chunks.
type VectorStore interface {
	// Insert adds chunks to the index.
	Insert(records []Record) error

	// Search returns the top-K chunks most similar to the query vector.
	Search(vector []float32, topK int) ([]ScoredRecord, error)

	// DeleteBySource removes every chunk belonging to a source document,
	// used when a document is re-ingested.
	DeleteBySource(sourceDocument string) (int, error)

	// Documents returns the distinct source document names in the index.
	Documents() ([]string, error)

	// Count returns the number of indexed chunks.
	Count() (int, error)
}

// Record is one indexed document chunk.
type Record struct {
	ID             string
	SourceDocument string
	Page           int
	ChunkText      string
	Embedding      []float32
	CreatedAt      time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
