package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/kingrea/airway/internal/logbook"
)

func streamServer(t *testing.T, chunks ...string) (*httptest.Server, *[]openai.ChatCompletionRequest) {
	t.Helper()
	var seen []openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		seen = append(seen, req)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			payload, _ := json.Marshal(openai.ChatCompletionStreamResponse{
				ID:      "chunk",
				Object:  "chat.completion.chunk",
				Model:   req.Model,
				Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{Content: chunk}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newAssistant(t *testing.T, url string, opts ...Option) *Assistant {
	t.Helper()
	a, err := New(Config{APIKey: "test-key", BaseURL: url + "/v1", Model: "test-model"}, opts...)
	if err != nil {
		t.Fatalf("new assistant: %v", err)
	}
	return a
}

func TestAskStreamsIntoModelTurn(t *testing.T) {
	srv, seen := streamServer(t, "Step 3 ", "uses low-dose ", "ICS-formoterol.")
	a := newAssistant(t, srv.URL)
	conv := NewConversation()

	var got []string
	if err := a.Ask(context.Background(), conv, "What is step 3?", func(c string) { got = append(got, c) }); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("chunks = %v", got)
	}
	turns := conv.Turns()
	if len(turns) != 2 || turns[0].Role != RoleUser || turns[1].Role != RoleModel {
		t.Fatalf("turns = %+v", turns)
	}
	if turns[1].Text != "Step 3 uses low-dose ICS-formoterol." {
		t.Fatalf("model turn = %q", turns[1].Text)
	}

	req := (*seen)[0]
	if req.Model != "test-model" || !req.Stream {
		t.Fatalf("request = %+v", req)
	}
	if req.Messages[0].Role != openai.ChatMessageRoleSystem || !strings.Contains(req.Messages[0].Content, "REFERENCE") {
		t.Fatalf("system instruction missing")
	}
	if last := req.Messages[len(req.Messages)-1]; last.Content != "What is step 3?" {
		t.Fatalf("placeholder leaked into request: %+v", last)
	}
}

func TestAskSendsHistoryAsAssistantTurns(t *testing.T) {
	srv, seen := streamServer(t, "ok")
	a := newAssistant(t, srv.URL)
	conv := NewConversation()
	for _, q := range []string{"first", "second"} {
		if err := a.Ask(context.Background(), conv, q, nil); err != nil {
			t.Fatalf("ask %s: %v", q, err)
		}
	}
	msgs := (*seen)[1].Messages
	if len(msgs) != 4 || msgs[2].Role != openai.ChatMessageRoleAssistant {
		t.Fatalf("second request messages = %+v", msgs)
	}
}

func TestAskFailureRemovesPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	book, err := logbook.New(filepath.Join(t.TempDir(), "journey.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	a := newAssistant(t, srv.URL, WithLogbook(book))
	conv := NewConversation()
	err = a.Ask(context.Background(), conv, "hello", nil)

	var chatErr *ChatError
	if !errors.As(err, &chatErr) {
		t.Fatalf("expected ChatError, got %v", err)
	}
	if !strings.Contains(chatErr.Message, "API key") {
		t.Fatalf("message = %q", chatErr.Message)
	}
	turns := conv.Turns()
	if len(turns) != 1 || turns[0].Role != RoleUser {
		t.Fatalf("pending model turn should be gone, got %+v", turns)
	}
	if _, total := book.Tail(1); total != 1 {
		t.Fatalf("failure should be logged once, got %d entries", total)
	}
}

// heldStream sends the given chunks, then holds the response open until the
// client goes away.
func heldStream(t *testing.T, arrived chan<- struct{}, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			payload, _ := json.Marshal(openai.ChatCompletionStreamResponse{
				ID:      "chunk",
				Object:  "chat.completion.chunk",
				Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{Content: chunk}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		w.(http.Flusher).Flush()
		if arrived != nil {
			close(arrived)
		}
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAskCancelKeepsReceivedText(t *testing.T) {
	srv := heldStream(t, nil, "Step 4 adds ")
	a := newAssistant(t, srv.URL)
	conv := NewConversation()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := a.Ask(ctx, conv, "What does step 4 add?", func(string) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	turns := conv.Turns()
	if len(turns) != 2 || turns[1].Role != RoleModel || turns[1].Text != "Step 4 adds " {
		t.Fatalf("partial reply should be kept, got %+v", turns)
	}
}

func TestAskCancelBeforeAnyChunkDropsPlaceholder(t *testing.T) {
	arrived := make(chan struct{})
	srv := heldStream(t, arrived)
	a := newAssistant(t, srv.URL)
	conv := NewConversation()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-arrived
		cancel()
	}()
	err := a.Ask(ctx, conv, "hello", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if turns := conv.Turns(); len(turns) != 1 || turns[0].Role != RoleUser {
		t.Fatalf("empty model turn should be removed, got %+v", turns)
	}
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	srv, seen := streamServer(t, "unused")
	a := newAssistant(t, srv.URL)
	conv := NewConversation()
	if err := a.Ask(context.Background(), conv, "   ", nil); err == nil {
		t.Fatalf("expected error for blank question")
	}
	if conv.Len() != 0 || len(*seen) != 0 {
		t.Fatalf("blank question should not reach the endpoint")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
	a, err := New(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Model() != DefaultModel {
		t.Fatalf("model = %s", a.Model())
	}
}
