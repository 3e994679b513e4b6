package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/askbridge/askbridge/internal/llm"
	"github.com/askbridge/askbridge/internal/retrieval"
)

// Searcher is the retrieval capability the docs pipeline needs.
// *retrieval.Retriever implements it.
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.ContextChunk, error)
}

// Citation points an answer back at the indexed chunk it came from.
type Citation struct {
	SourceDocument string `json:"source_document"`
	Page           int    `json:"page"`
	Snippet        string `json:"snippet"`
}

// DocsResult is the outcome of the retrieval pipeline.
type DocsResult struct {
	Answer    string
	Citations []Citation
	Trace     []string
}

// DocsPipeline answers questions from indexed documentation: embed, search,
// then synthesize strictly from the retrieved chunks.
type DocsPipeline struct {
	client    Chatter
	retriever Searcher
	topK      int
}

// NewDocsPipeline creates the retrieval pipeline.
func NewDocsPipeline(client Chatter, retriever Searcher, topK int) *DocsPipeline {
	return &DocsPipeline{client: client, retriever: retriever, topK: topK}
}

const snippetLen = 200

// Run executes the pipeline. An empty index is not an error: the caller gets
// an honest no-documentation answer with zero citations. An index failure
// degrades the same way, with the failure recorded in the trace; only an
// embedding-provider outage surfaces as an error.
func (p *DocsPipeline) Run(ctx context.Context, question, history string) (*DocsResult, error) {
	chunks, err := p.retriever.Retrieve(ctx, question, p.topK)
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			return nil, fmt.Errorf("retrieving context: %w", err)
		}
		slog.Error("document retrieval failed", "error", err)
		return &DocsResult{
			Answer: docsFailedAnswer,
			Trace:  []string{"Document retrieval failed"},
		}, nil
	}

	trace := []string{fmt.Sprintf("Retrieved %d document chunks", len(chunks))}

	if len(chunks) == 0 {
		return &DocsResult{Answer: noDocsAnswer, Trace: trace}, nil
	}

	answer, err := p.client.Chat(ctx, ragAnswerPrompt(question, history, chunks), false)
	if err != nil {
		return nil, fmt.Errorf("synthesizing answer: %w", err)
	}

	citations := make([]Citation, len(chunks))
	for i, c := range chunks {
		citations[i] = Citation{
			SourceDocument: c.SourceDocument,
			Page:           c.Page,
			Snippet:        preview(c.Text, snippetLen),
		}
	}

	return &DocsResult{Answer: answer, Citations: citations, Trace: trace}, nil
}
