package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/askbridge/askbridge/internal/retrieval"
)

// BatchEmbedder generates embeddings for document chunks.
// *retrieval.Embedder implements it.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Ingester turns document files into indexed, embedded chunks.
// Re-ingesting a document replaces its previous chunks.
type Ingester struct {
	embedder BatchEmbedder
	store    retrieval.VectorStore
	chunker  *Chunker
}

// NewIngester creates an Ingester. A nil chunker gets the defaults.
func NewIngester(embedder BatchEmbedder, store retrieval.VectorStore, chunker *Chunker) *Ingester {
	if chunker == nil {
		chunker = NewChunker(0, 0)
	}
	return &Ingester{
		embedder: embedder,
		store:    store,
		chunker:  chunker,
	}
}

// Stats summarizes one ingestion run.
type Stats struct {
	Document string
	Pages    int
	Chunks   int
	Replaced int
}

// IngestFile extracts, chunks, embeds, and indexes one document. The source
// document name is the file's base name.
func (in *Ingester) IngestFile(ctx context.Context, path string) (*Stats, error) {
	pages, err := ExtractPages(path)
	if err != nil {
		return nil, err
	}

	doc := filepath.Base(path)
	type chunkRef struct {
		page int
		text string
	}
	var refs []chunkRef
	for _, p := range pages {
		for _, text := range in.chunker.Split(p.Text) {
			refs = append(refs, chunkRef{page: p.Number, text: text})
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("document %q has no extractable text", doc)
	}

	texts := make([]string, len(refs))
	for i, ref := range refs {
		texts[i] = ref.text
	}
	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}

	replaced, err := in.store.DeleteBySource(doc)
	if err != nil {
		return nil, fmt.Errorf("removing previous chunks: %w", err)
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(refs))
	for i, ref := range refs {
		records[i] = retrieval.Record{
			ID:             uuid.NewString(),
			SourceDocument: doc,
			Page:           ref.page,
			ChunkText:      ref.text,
			Embedding:      vectors[i],
			CreatedAt:      now,
		}
	}
	if err := in.store.Insert(records); err != nil {
		return nil, fmt.Errorf("indexing chunks: %w", err)
	}

	stats := &Stats{
		Document: doc,
		Pages:    len(pages),
		Chunks:   len(records),
		Replaced: replaced,
	}
	slog.Info("document ingested",
		"document", stats.Document,
		"pages", stats.Pages,
		"chunks", stats.Chunks,
		"replaced", stats.Replaced,
	)
	return stats, nil
}
