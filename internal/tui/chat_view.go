package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/airway/internal/chat"
)

// chatChunkMsg and chatDoneMsg carry the stream they belong to so a stream
// abandoned by close is still drained.
type chatChunkMsg struct {
	stream chan tea.Msg
}

type chatDoneMsg struct {
	stream chan tea.Msg
	err    error
}

// chatOverlay is the assistant panel drawn over the step. The conversation
// outlives the overlay; closing it cancels a reply in flight.
type chatOverlay struct {
	open   bool
	input  textinput.Model
	conv   *chat.Conversation
	stream chan tea.Msg
	cancel context.CancelFunc
	errMsg string
}

func newChatOverlay() *chatOverlay {
	input := textinput.New()
	input.Placeholder = "Ask about the guideline…"
	input.Prompt = "› "
	input.CharLimit = 500
	return &chatOverlay{input: input, conv: chat.NewConversation()}
}

func (a *App) openChat() tea.Cmd {
	if a.assistant == nil {
		a.statusMsg = "Chat is not configured · set the API key named in .airway/config.yaml"
		return nil
	}
	a.chat.open = true
	a.chat.errMsg = ""
	a.chat.input.Focus()
	return textinput.Blink
}

func (c *chatOverlay) busy() bool {
	return c.stream != nil
}

func (c *chatOverlay) close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stream = nil
	c.open = false
	c.input.Blur()
}

func (c *chatOverlay) handleKey(msg tea.KeyMsg, a *App) tea.Cmd {
	switch msg.String() {
	case "esc":
		c.close()
		return nil
	case "enter":
		if c.busy() {
			return nil
		}
		text := strings.TrimSpace(c.input.Value())
		if text == "" {
			c.errMsg = "Type a question first"
			return nil
		}
		c.input.Reset()
		c.errMsg = ""
		return c.send(a, text)
	}
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return cmd
}

// send starts a reply in the background and returns the command that waits
// for its first message.
func (c *chatOverlay) send(a *App, text string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	stream := make(chan tea.Msg, 32)
	c.stream = stream
	c.cancel = cancel
	asker, conv := a.assistant, c.conv
	go func() {
		defer close(stream)
		err := asker.Ask(ctx, conv, text, func(string) {
			stream <- chatChunkMsg{stream: stream}
		})
		stream <- chatDoneMsg{stream: stream, err: err}
	}()
	return waitForChat(stream)
}

func waitForChat(stream chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-stream
		if !ok {
			return nil
		}
		return msg
	}
}

func (c *chatOverlay) handle(msg tea.Msg, a *App) tea.Cmd {
	switch msg := msg.(type) {
	case chatChunkMsg:
		return waitForChat(msg.stream)
	case chatDoneMsg:
		if msg.stream != c.stream {
			return nil
		}
		c.stream = nil
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		var chatErr *chat.ChatError
		switch {
		case msg.err == nil, errors.Is(msg.err, context.Canceled):
		case errors.As(msg.err, &chatErr):
			c.errMsg = chatErr.Message
		default:
			c.errMsg = msg.err.Error()
			a.logWarn("Chat failed: %v", msg.err)
		}
	}
	return nil
}

func (c *chatOverlay) view(width int) string {
	sections := []string{titleStyle.Render("Ask the assistant"), ""}
	turns := c.conv.Turns()
	if len(turns) == 0 {
		sections = append(sections, detailTextStyle.Render("Questions are answered from the embedded guideline summary only."))
	}
	body := lipgloss.NewStyle().Width(max(20, width))
	for _, t := range turns {
		who, style := "You", cursorStyle
		if t.Role == chat.RoleModel {
			who, style = "Assistant", goodStyle
		}
		text := t.Text
		if text == "" && c.busy() {
			text = "…"
		}
		sections = append(sections, style.Render(who+":"), body.Render(text), "")
	}
	if c.errMsg != "" {
		sections = append(sections, alertStyle.Render(c.errMsg))
	}
	sections = append(sections, c.input.View())
	hint := "Enter → send    Esc → close"
	if c.busy() {
		hint = fmt.Sprintf("Streaming reply · %s", hint)
	}
	sections = append(sections, hintStyle.Render(hint))
	return strings.Join(sections, "\n")
}
