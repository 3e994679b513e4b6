package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/askbridge/askbridge/internal/llm"
	"github.com/askbridge/askbridge/internal/storage"
)

// mockSales implements SalesQuerier for testing.
type mockSales struct {
	queryFn func(ctx context.Context, query string, maxRows int) (*storage.QueryResult, error)
}

func (m *mockSales) Query(ctx context.Context, query string, maxRows int) (*storage.QueryResult, error) {
	return m.queryFn(ctx, query, maxRows)
}

func TestStructuredRun(t *testing.T) {
	calls := 0
	client := &mockChatter{
		chatFn: func(_ context.Context, messages []llm.Message, _ bool) (string, error) {
			calls++
			if calls == 1 {
				return "```sql\nSELECT SUM(units_sold) FROM sales WHERE model = 'RAV4 HEV'\n```", nil
			}
			return "A total of 260 units were sold.", nil
		},
	}

	var executed string
	sales := &mockSales{
		queryFn: func(_ context.Context, query string, maxRows int) (*storage.QueryResult, error) {
			executed = query
			if maxRows != 50 {
				t.Errorf("maxRows = %d, want 50", maxRows)
			}
			return &storage.QueryResult{Columns: []string{"total"}, Rows: [][]string{{"260"}}}, nil
		},
	}

	p := NewStructuredPipeline(client, sales, 50)
	res, err := p.Run(context.Background(), "How many RAV4 HEV were sold?", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if strings.HasPrefix(res.SQLQuery, "```") {
		t.Errorf("fences not stripped: %q", res.SQLQuery)
	}
	if executed != res.SQLQuery {
		t.Errorf("executed %q but reported %q", executed, res.SQLQuery)
	}
	if res.Answer != "A total of 260 units were sold." {
		t.Errorf("Answer = %q", res.Answer)
	}
	if len(res.Trace) != 2 {
		t.Fatalf("len(trace) = %d, want 2", len(res.Trace))
	}
	if !strings.HasPrefix(res.Trace[0], "Generated SQL:") {
		t.Errorf("trace[0] = %q", res.Trace[0])
	}
	if !strings.HasPrefix(res.Trace[1], "SQL execution output:") {
		t.Errorf("trace[1] = %q", res.Trace[1])
	}
}

// TestStructuredRejectsUnsafeSQL verifies the validation gate: a destructive
// statement never reaches the database, the rejection lands in the trace,
// and the caller still gets an answer explaining nothing was retrieved.
func TestStructuredRejectsUnsafeSQL(t *testing.T) {
	var summaryPrompt string
	calls := 0
	client := &mockChatter{
		chatFn: func(_ context.Context, messages []llm.Message, _ bool) (string, error) {
			calls++
			if calls == 1 {
				return "DROP TABLE sales", nil
			}
			summaryPrompt = messages[len(messages)-1].Content
			return "I couldn't retrieve any sales data for that question.", nil
		},
	}
	sales := &mockSales{
		queryFn: func(_ context.Context, _ string, _ int) (*storage.QueryResult, error) {
			t.Fatal("rejected query reached the database")
			return nil, nil
		},
	}

	p := NewStructuredPipeline(client, sales, 50)
	res, err := p.Run(context.Background(), "delete everything", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SQLQuery != "" {
		t.Errorf("SQLQuery = %q, want empty for a rejected query", res.SQLQuery)
	}
	if !traceContains(res.Trace, "Generated SQL:\nDROP TABLE sales") {
		t.Errorf("trace missing the generated query: %v", res.Trace)
	}
	if !traceContains(res.Trace, "SQL query validation failed") {
		t.Errorf("trace missing the rejection: %v", res.Trace)
	}
	if !strings.Contains(summaryPrompt, "validation failed") {
		t.Errorf("summary prompt missing failure note: %q", summaryPrompt)
	}
	if res.Answer == "" {
		t.Error("empty answer on rejected query")
	}
}

func TestStructuredRejectsStackedStatements(t *testing.T) {
	client := &mockChatter{
		chatFn: func(_ context.Context, _ []llm.Message, _ bool) (string, error) {
			return "SELECT * FROM sales; DELETE FROM sales", nil
		},
	}
	sales := &mockSales{
		queryFn: func(_ context.Context, _ string, _ int) (*storage.QueryResult, error) {
			t.Fatal("rejected query reached the database")
			return nil, nil
		},
	}

	p := NewStructuredPipeline(client, sales, 50)
	res, err := p.Run(context.Background(), "q", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !traceContains(res.Trace, "SQL query validation failed") {
		t.Errorf("trace missing the rejection: %v", res.Trace)
	}
}

// TestStructuredExecutionFailureDegrades verifies a store fault turns into a
// traced degradation, not a failed request, and that the store's error text
// stays out of the trace.
func TestStructuredExecutionFailureDegrades(t *testing.T) {
	calls := 0
	client := &mockChatter{
		chatFn: func(_ context.Context, _ []llm.Message, _ bool) (string, error) {
			calls++
			if calls == 1 {
				return "SELECT model FROM sales", nil
			}
			return "I couldn't retrieve the sales figures right now.", nil
		},
	}
	sales := &mockSales{
		queryFn: func(_ context.Context, _ string, _ int) (*storage.QueryResult, error) {
			return nil, errors.New("database table is locked: /var/lib/sales.db")
		},
	}

	p := NewStructuredPipeline(client, sales, 50)
	res, err := p.Run(context.Background(), "q", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SQLQuery == "" {
		t.Error("SQLQuery missing: the query passed validation")
	}
	if !traceContains(res.Trace, "SQL query execution failed") {
		t.Errorf("trace missing the execution failure: %v", res.Trace)
	}
	for _, entry := range res.Trace {
		if strings.Contains(entry, "/var/lib") || strings.Contains(entry, "locked") {
			t.Errorf("trace leaks store internals: %q", entry)
		}
	}
}

func TestStructuredGenerationFailure(t *testing.T) {
	client := &mockChatter{
		chatFn: func(_ context.Context, _ []llm.Message, _ bool) (string, error) {
			return "", llm.ErrUnavailable
		},
	}
	sales := &mockSales{
		queryFn: func(_ context.Context, _ string, _ int) (*storage.QueryResult, error) {
			return nil, nil
		},
	}

	p := NewStructuredPipeline(client, sales, 50)
	_, err := p.Run(context.Background(), "q", "")
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable to surface", err)
	}
}

func TestStructuredEmptyResultStaysHonest(t *testing.T) {
	var summaryPrompt string
	calls := 0
	client := &mockChatter{
		chatFn: func(_ context.Context, messages []llm.Message, _ bool) (string, error) {
			calls++
			if calls == 1 {
				return "SELECT model FROM sales WHERE year = 1999", nil
			}
			summaryPrompt = messages[len(messages)-1].Content
			return "No matching records were found for 1999.", nil
		},
	}
	sales := &mockSales{
		queryFn: func(_ context.Context, _ string, _ int) (*storage.QueryResult, error) {
			return &storage.QueryResult{Columns: []string{"model"}}, nil
		},
	}

	p := NewStructuredPipeline(client, sales, 50)
	res, err := p.Run(context.Background(), "sales in 1999?", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(summaryPrompt, "(no rows)") {
		t.Errorf("summary prompt missing empty-result marker: %q", summaryPrompt)
	}
	if res.Answer == "" {
		t.Error("empty answer for empty result set")
	}
}

// TestPreviewKeepsRunesIntact verifies truncation backs up to a rune
// boundary instead of splitting a multibyte character.
func TestPreviewKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("гарантия ", 30)
	got := preview(long, 200)

	if !utf8.ValidString(got) {
		t.Errorf("preview produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated preview missing ellipsis: %q", got)
	}
	if len(got) > 203 {
		t.Errorf("len(preview) = %d, want at most 203", len(got))
	}

	if got := preview("short", 200); got != "short" {
		t.Errorf("preview(short) = %q", got)
	}
}
