package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// HybridResult is the outcome of running both pipelines on a decomposed
// question.
type HybridResult struct {
	Answer    string
	SQLQuery  string
	Citations []Citation
	Trace     []string
}

// HybridPipeline splits a two-sided question, runs the structured and docs
// pipelines concurrently, and merges whatever came back. A single failed
// half degrades the answer instead of failing the request.
type HybridPipeline struct {
	client     Chatter
	structured *StructuredPipeline
	docs       *DocsPipeline
}

// NewHybridPipeline creates the hybrid pipeline.
func NewHybridPipeline(client Chatter, structured *StructuredPipeline, docs *DocsPipeline) *HybridPipeline {
	return &HybridPipeline{client: client, structured: structured, docs: docs}
}

type splitReply struct {
	SQLQuestion string `json:"sql_question"`
	RAGQuestion string `json:"rag_question"`
}

// split asks the model to decompose the question. A parse failure or empty
// field reports ok=false; the caller then degrades to retrieval-only.
func (p *HybridPipeline) split(ctx context.Context, question string) (splitReply, bool) {
	raw, err := p.client.Chat(ctx, splitPrompt(question), true)
	if err != nil {
		slog.Warn("hybrid decomposition chat failed", "error", err)
		return splitReply{}, false
	}

	var reply splitReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		slog.Warn("hybrid decomposition returned malformed JSON", "error", err, "response", raw)
		return splitReply{}, false
	}
	reply.SQLQuestion = strings.TrimSpace(reply.SQLQuestion)
	reply.RAGQuestion = strings.TrimSpace(reply.RAGQuestion)
	if reply.SQLQuestion == "" || reply.RAGQuestion == "" {
		slog.Warn("hybrid decomposition returned empty sub-question", "response", raw)
		return splitReply{}, false
	}
	return reply, true
}

// Run executes the hybrid flow. The two sub-pipelines run in parallel with
// independent outcomes: the request only fails when both halves fail.
func (p *HybridPipeline) Run(ctx context.Context, question, history string) (*HybridResult, error) {
	sub, ok := p.split(ctx, question)
	if !ok {
		docsRes, err := p.docs.Run(ctx, question, history)
		if err != nil {
			return nil, err
		}
		trace := append([]string{
			"Decomposition failed; answered from documentation only",
		}, docsRes.Trace...)
		return &HybridResult{
			Answer:    docsRes.Answer,
			Citations: docsRes.Citations,
			Trace:     trace,
		}, nil
	}

	trace := []string{
		"Sub-question (sales data): " + sub.SQLQuestion,
		"Sub-question (documentation): " + sub.RAGQuestion,
	}

	var (
		wg      sync.WaitGroup
		sqlRes  *StructuredResult
		sqlErr  error
		docsRes *DocsResult
		docsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		sqlRes, sqlErr = p.structured.Run(ctx, sub.SQLQuestion, history)
	}()
	go func() {
		defer wg.Done()
		docsRes, docsErr = p.docs.Run(ctx, sub.RAGQuestion, history)
	}()
	wg.Wait()

	if sqlErr != nil && docsErr != nil {
		return nil, fmt.Errorf("both pipelines failed: %w", sqlErr)
	}

	result := &HybridResult{}
	var sqlAnswer, ragAnswer string

	if sqlErr != nil {
		slog.Warn("hybrid structured half failed", "error", sqlErr)
		trace = append(trace, "Sales data lookup failed; answer covers documentation only")
	} else {
		sqlAnswer = sqlRes.Answer
		result.SQLQuery = sqlRes.SQLQuery
		trace = append(trace, sqlRes.Trace...)
	}

	if docsErr != nil {
		slog.Warn("hybrid docs half failed", "error", docsErr)
		trace = append(trace, "Documentation lookup failed; answer covers sales data only")
	} else {
		ragAnswer = docsRes.Answer
		result.Citations = docsRes.Citations
		trace = append(trace, docsRes.Trace...)
	}

	result.Answer = p.merge(ctx, question, sqlAnswer, ragAnswer, &trace)
	result.Trace = trace
	return result, nil
}

// merge combines the surviving partial answers. With only one half present
// it is returned as-is; a failed merge call degrades to concatenation.
func (p *HybridPipeline) merge(ctx context.Context, question, sqlAnswer, ragAnswer string, trace *[]string) string {
	switch {
	case sqlAnswer == "":
		return ragAnswer
	case ragAnswer == "":
		return sqlAnswer
	}

	merged, err := p.client.Chat(ctx, mergePrompt(question, sqlAnswer, ragAnswer), false)
	if err != nil {
		slog.Warn("hybrid merge chat failed, concatenating answers", "error", err)
		*trace = append(*trace, "Answer merge failed; returning both partial answers")
		return sqlAnswer + "\n\n" + ragAnswer
	}
	return merged
}
