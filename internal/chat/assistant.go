// Package chat answers free-text questions about the bundled asthma
// reference. It streams replies into a Conversation and never reads or
// changes the clinical record or navigation state.
package chat

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/kingrea/airway/internal/logbook"
)

//go:embed reference.md
var reference string

const systemPreamble = `You answer questions from clinicians about asthma management.
Answer only from the reference below. If the reference does not cover the
question, say so and suggest consulting the full guideline. Keep answers short.

REFERENCE:
`

// DefaultModel is used when the configuration names none.
const DefaultModel = openai.GPT4oMini

// Config selects the completion endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ChatError is returned when a reply could not be obtained. Message is fit
// for display.
type ChatError struct {
	Message string
	Err     error
}

func (e *ChatError) Error() string {
	return e.Message
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// Assistant issues one streaming completion per user turn.
type Assistant struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
	timeout    time.Duration
	system     string
	log        *logbook.Logbook
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogbook records failed calls.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(a *Assistant) {
		a.log = lb
	}
}

// WithHTTPClient overrides the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Assistant) {
		a.httpClient = client
	}
}

// New builds an assistant. An empty API key is rejected.
func New(cfg Config, opts ...Option) (*Assistant, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("chat: api key is required")
	}
	a := &Assistant{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		system:  systemPreamble + reference,
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	for _, opt := range opts {
		opt(a)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if a.httpClient != nil {
		clientCfg.HTTPClient = a.httpClient
	}
	a.client = openai.NewClientWithConfig(clientCfg)
	return a, nil
}

// Model returns the completion model in use.
func (a *Assistant) Model() string {
	return a.model
}

// Ask appends text as a user turn and streams the reply into a new model
// turn, calling onChunk for every fragment. When the call fails the pending
// model turn is removed and a *ChatError is returned. When ctx is cancelled
// mid-stream the fragments already received are kept and ctx.Err() is
// returned.
func (a *Assistant) Ask(ctx context.Context, conv *Conversation, text string, onChunk func(string)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &ChatError{Message: "Type a question first."}
	}
	conv.append(RoleUser, text)
	pending := conv.append(RoleModel, "")

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: a.messages(conv.history(pending)),
		Stream:   true,
	}
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return a.fail(ctx, conv, pending, err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return a.fail(ctx, conv, pending, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		conv.extend(pending, chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if conv.text(pending) == "" {
		conv.remove(pending)
		return &ChatError{Message: "The assistant returned an empty reply. Please try again."}
	}
	return nil
}

func (a *Assistant) messages(turns []Turn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: a.system})
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	return out
}

func (a *Assistant) fail(ctx context.Context, conv *Conversation, pending int, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		if conv.text(pending) == "" {
			conv.remove(pending)
		}
		return ctxErr
	}
	conv.remove(pending)
	a.log.Error("chat request failed: %v", err)
	return &ChatError{Message: describe(err), Err: err}
}

func describe(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "The assistant took too long to answer. Please try again."
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "The assistant rejected the API key. Check the chat configuration."
		case http.StatusTooManyRequests:
			return "The assistant is busy right now. Please wait a moment and try again."
		}
		return fmt.Sprintf("The assistant could not answer (status %d).", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("The assistant could not answer (status %d).", reqErr.HTTPStatusCode)
	}
	return "The assistant is unreachable. Check the network connection and try again."
}
