package agent

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/askbridge/askbridge/internal/sqlguard"
	"github.com/askbridge/askbridge/internal/storage"
)

// SalesQuerier is the read-only query capability the structured pipeline
// needs. *storage.SalesDB implements it.
type SalesQuerier interface {
	Query(ctx context.Context, query string, maxRows int) (*storage.QueryResult, error)
}

// StructuredResult is the outcome of the SQL pipeline.
type StructuredResult struct {
	Answer   string
	SQLQuery string
	Trace    []string
}

// StructuredPipeline turns a question into a validated SELECT, runs it
// against the read-only sales database, and narrates the rows.
type StructuredPipeline struct {
	client  Chatter
	sales   SalesQuerier
	maxRows int
}

// NewStructuredPipeline creates the SQL pipeline.
func NewStructuredPipeline(client Chatter, sales SalesQuerier, maxRows int) *StructuredPipeline {
	return &StructuredPipeline{client: client, sales: sales, maxRows: maxRows}
}

const tracePreview = 200

// Run executes the pipeline. Every generated query passes the safety
// validator before it may touch the database. A rejected or failed query
// does not fail the request: the failure joins the trace and the summary
// model tells the caller no data could be retrieved. Only a model outage
// surfaces as an error.
func (p *StructuredPipeline) Run(ctx context.Context, question, history string) (*StructuredResult, error) {
	raw, err := p.client.Chat(ctx, sqlPrompt(question, history), false)
	if err != nil {
		return nil, fmt.Errorf("generating query: %w", err)
	}

	query := sqlguard.StripFences(raw)
	trace := []string{"Generated SQL:\n" + query}

	res := &StructuredResult{}
	var rowsText string

	if verr := sqlguard.Validate(query); verr != nil {
		slog.Warn("generated query rejected", "error", verr, "query", query)
		rowsText = "SQL query validation failed: " + verr.Error()
		trace = append(trace, rowsText)
	} else {
		res.SQLQuery = query
		result, qerr := p.sales.Query(ctx, query, p.maxRows)
		if qerr != nil {
			slog.Error("sales query failed", "error", qerr)
			rowsText = "SQL query execution failed"
			trace = append(trace, rowsText)
		} else {
			rowsText = result.Format()
			trace = append(trace, "SQL execution output: "+preview(rowsText, tracePreview))
		}
	}

	answer, err := p.client.Chat(ctx, sqlAnswerPrompt(question, rowsText), false)
	if err != nil {
		return nil, fmt.Errorf("summarizing results: %w", err)
	}

	res.Answer = answer
	res.Trace = trace
	return res, nil
}

// preview truncates s for trace entries, backing up to a rune boundary so a
// multibyte character is never cut in half.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
