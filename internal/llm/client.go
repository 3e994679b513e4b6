package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ErrUnavailable marks upstream model failures that the caller should surface
// as a temporary outage rather than a bad request.
var ErrUnavailable = errors.New("model provider unavailable")

// Message is a chat message in provider-neutral form.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client wraps the OpenAI API for chat completions and embeddings.
type Client struct {
	client     *openai.Client
	chatModel  string
	embedModel string
}

// New creates a Client. baseURL may be empty to use the default API endpoint;
// a non-empty value points the client at a compatible gateway.
func New(apiKey, baseURL, chatModel, embedModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Client{
		client:     openai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
	}, nil
}

// Chat sends messages to the chat model and returns the assistant's response.
// When jsonMode is true the model is constrained to emit a single JSON object.
func (c *Client) Chat(ctx context.Context, messages []Message, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: empty embeddings array")
	}
	return resp.Data[0].Embedding, nil
}

// classify wraps provider outages in ErrUnavailable so handlers can map them
// to 503 without inspecting SDK types. Client-side errors pass through.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= http.StatusInternalServerError || apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	// Transport-level failures (connection refused, timeouts) and gateway
	// errors are outages too.
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
