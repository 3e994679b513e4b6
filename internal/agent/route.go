package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/askbridge/askbridge/internal/llm"
)

// Route says which pipeline answers a question.
type Route string

const (
	RouteStructured Route = "STRUCTURED"
	RouteRetrieval  Route = "RETRIEVAL"
	RouteHybrid     Route = "HYBRID"
	RouteNone       Route = "NONE"
)

// Chatter is the chat-completion capability the agent needs from the model
// provider. *llm.Client implements it.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error)
}

// Hints records which keyword families fired for a question. They are fed to
// the model as context and double as the fallback when the model's answer is
// unusable.
type Hints struct {
	Structured bool
	Documents  bool
}

var structuredKeywords = []string{
	"sales", "sold", "sell", "units", "how many", "count", "number of",
	"average", "total", "sum", "trend", "by year", "by month", "per month",
	"per year", "top ", "most popular", "best selling", "region",
	"rav4", "corolla", "camry", "highlander", "prius", "yaris", "tacoma",
}

var documentKeywords = []string{
	"warranty", "coverage", "covered", "maintenance", "manual", "guide",
	"documentation", "service interval", "recommended", "what does the",
	"policy", "instructions", "how do i", "how to",
}

// DetectHints scans the question for keyword families. Matching is plain
// case-insensitive substring search; the lists err on the side of firing.
func DetectHints(question string) Hints {
	q := strings.ToLower(question)
	var h Hints
	for _, kw := range structuredKeywords {
		if strings.Contains(q, kw) {
			h.Structured = true
			break
		}
	}
	for _, kw := range documentKeywords {
		if strings.Contains(q, kw) {
			h.Documents = true
			break
		}
	}
	return h
}

// fallback maps hints to a route when the model can't be consulted.
func (h Hints) fallback() Route {
	switch {
	case h.Structured && h.Documents:
		return RouteHybrid
	case h.Structured:
		return RouteStructured
	case h.Documents:
		return RouteRetrieval
	default:
		return RouteNone
	}
}

// parseRouteLabel maps a model reply onto a Route by substring, tolerating
// chatter around the label. HYBRID is checked first since its replies often
// mention both sides.
func parseRouteLabel(s string) (Route, bool) {
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "HYBRID"), strings.Contains(upper, "BOTH"):
		return RouteHybrid, true
	case strings.Contains(upper, "SQL"), strings.Contains(upper, "STRUCTURED"):
		return RouteStructured, true
	case strings.Contains(upper, "RAG"), strings.Contains(upper, "RETRIEVAL"), strings.Contains(upper, "DOCS"):
		return RouteRetrieval, true
	case strings.Contains(upper, "NONE"):
		return RouteNone, true
	}
	return RouteNone, false
}

const classifyTimeout = 10 * time.Second

// Router classifies questions with the model, falling back to keyword
// heuristics when the model fails or answers with something unparseable.
type Router struct {
	client Chatter
}

// NewRouter creates a Router using the given chat client.
func NewRouter(client Chatter) *Router {
	return &Router{client: client}
}

// Classify returns the route for a question and whether the decision came
// from the model or from the keyword fallback.
func (r *Router) Classify(ctx context.Context, question, history string) (Route, bool) {
	hints := DetectHints(question)

	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	raw, err := r.client.Chat(ctx, routerPrompt(question, history, hints), true)
	if err != nil {
		slog.Warn("route classification chat failed, using keyword fallback", "error", err)
		return hints.fallback(), true
	}

	var reply struct {
		Route string `json:"route"`
	}
	label := raw
	if err := json.Unmarshal([]byte(raw), &reply); err == nil && reply.Route != "" {
		label = reply.Route
	}

	route, ok := parseRouteLabel(label)
	if !ok {
		slog.Warn("unparseable route label, using keyword fallback", "label", label)
		return hints.fallback(), true
	}
	return route, false
}
