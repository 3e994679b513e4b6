package agent

import (
	"fmt"
	"strings"

	"github.com/askbridge/askbridge/internal/llm"
	"github.com/askbridge/askbridge/internal/retrieval"
)

// salesSchema is the static description of the sales database handed to the
// model when generating SQL. Kept in one place so the generator and the
// router agree on what the structured side can answer.
const salesSchema = `Table: sales
Columns:
  model TEXT        -- vehicle model name, e.g. 'RAV4 HEV', 'Corolla'
  year INTEGER      -- calendar year of the sale
  month INTEGER     -- month of the sale, 1-12
  units_sold INTEGER
  region TEXT       -- sales region, e.g. 'West', 'East'
  powertrain TEXT   -- 'gas', 'hybrid', or 'ev'`

// noneAnswer is returned for questions outside both data sources. No model
// call and no store access happens on this path.
const noneAnswer = "I can help with vehicle sales figures and questions about the product documentation, " +
	"such as warranty and maintenance guides. That question falls outside what I have data for, " +
	"so I'd rather not guess."

// noDocsAnswer is returned when retrieval finds nothing relevant.
const noDocsAnswer = "I don't have documentation covering that topic, so I can't give you a grounded answer."

// docsFailedAnswer is returned when the document index could not be searched.
const docsFailedAnswer = "I couldn't search the documentation just now, so I can't give you a grounded answer. Please try again."

func withHistory(history, instructions string) string {
	if history == "" {
		return instructions
	}
	return history + "\n\n" + instructions
}

func routerPrompt(question, history string, h Hints) []llm.Message {
	var hints []string
	if h.Structured {
		hints = append(hints, "the question mentions sales or aggregate terms")
	}
	if h.Documents {
		hints = append(hints, "the question mentions documentation topics")
	}
	hintLine := "No keyword hints fired."
	if len(hints) > 0 {
		hintLine = "Keyword hints: " + strings.Join(hints, "; ") + "."
	}

	system := `You route user questions about vehicles to data sources. Reply with a JSON object {"route": "<label>"} where <label> is exactly one of:
SQL - the question asks about sales numbers, counts, totals, averages, or trends answerable from a sales database.
RAG - the question asks about content found in product documentation such as warranty or maintenance guides.
HYBRID - the question needs both the sales database and the documentation.
NONE - the question fits neither source.

The sales database schema:
` + salesSchema

	user := fmt.Sprintf("%s\n\nQuestion: %s", hintLine, question)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: withHistory(history, system)},
		{Role: llm.RoleUser, Content: user},
	}
}

func sqlPrompt(question, history string) []llm.Message {
	system := `You translate questions into SQLite queries. Rules:
- Output a single SELECT statement and nothing else. No explanations, no markdown.
- Never write INSERT, UPDATE, DELETE, DROP, or any other statement kind.
- Do not use WITH clauses; keep it one plain SELECT.
- Use only this schema:
` + salesSchema
	return []llm.Message{
		{Role: llm.RoleSystem, Content: withHistory(history, system)},
		{Role: llm.RoleUser, Content: question},
	}
}

func sqlAnswerPrompt(question, results string) []llm.Message {
	system := `You summarize query results for the user. Answer the question using only the rows provided. ` +
		`If the result set is empty, say plainly that no matching records were found; never invent numbers.`
	user := fmt.Sprintf("Question: %s\n\nQuery results:\n%s", question, results)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
}

func ragAnswerPrompt(question, history string, chunks []retrieval.ContextChunk) []llm.Message {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] (%s, page %d)\n%s\n\n", i+1, c.SourceDocument, c.Page, c.Text)
	}

	system := `You answer questions from product documentation. Use only the excerpts provided below. ` +
		`If they don't contain the answer, say so instead of guessing.

Excerpts:
` + b.String()
	return []llm.Message{
		{Role: llm.RoleSystem, Content: withHistory(history, system)},
		{Role: llm.RoleUser, Content: question},
	}
}

func splitPrompt(question string) []llm.Message {
	system := `The user's question needs both a sales database and product documentation. ` +
		`Split it into two self-contained sub-questions. Reply with a JSON object: ` +
		`{"sql_question": "<the part answerable from sales data>", "rag_question": "<the part answerable from documentation>"}`
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: question},
	}
}

func mergePrompt(question, sqlAnswer, ragAnswer string) []llm.Message {
	system := `Combine the two partial answers below into one coherent response to the user's question. ` +
		`Keep every figure and caveat; do not add information that is in neither answer.`
	user := fmt.Sprintf("Question: %s\n\nAnswer from sales data:\n%s\n\nAnswer from documentation:\n%s",
		question, sqlAnswer, ragAnswer)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
}
