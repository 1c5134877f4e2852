// Command toolmesh-tui is an interactive terminal chat client for a
// running toolmesh server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	Model          string `json:"model"`
	Content        string `json:"content"`
	Metrics        *struct {
		Iterations int `json:"iterations"`
		ToolCalls  int `json:"tool_calls"`
	} `json:"metrics"`
	Error string `json:"error"`
}

// client talks to the toolmesh HTTP API.
type client struct {
	apiURL string
	model  string
	token  string
	convID string
	http   *http.Client
}

func (c *client) send(message string) (*chatResponse, error) {
	body, err := json.Marshal(chatRequest{
		ConversationID: c.convID,
		Model:          c.model,
		Message:        message,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", c.apiURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close() //nolint:errcheck

	var resp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		raw, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(raw))
	}
	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, resp.Error)
	}

	c.convID = resp.ConversationID
	return &resp, nil
}

// Styles
var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#06B6D4")
	successColor   = lipgloss.Color("#10B981")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	chatBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor)
)

// Bubble Tea messages

type answerMsg struct {
	resp *chatResponse
}

type errMsg struct {
	err error
}

type chatEntry struct {
	sender  string
	content string
	isUser  bool
	isError bool
}

type model struct {
	client   *client
	input    textarea.Model
	chat     viewport.Model
	messages []chatEntry
	waiting  bool
	width    int
	height   int
	ready    bool
}

func newModel(c *client) model {
	ti := textarea.New()
	ti.Placeholder = "Ask something, or let the agent use its tools..."
	ti.Focus()
	ti.CharLimit = 4096
	ti.SetHeight(3)
	ti.ShowLineNumbers = false
	ti.KeyMap.InsertNewline.SetEnabled(false) // Enter sends

	return model{
		client: c,
		input:  ti,
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.send(text)
		if err != nil {
			return errMsg{err}
		}
		return answerMsg{resp}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.waiting {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}

			m.messages = append(m.messages, chatEntry{
				sender:  "You",
				content: text,
				isUser:  true,
			})
			m.input.Reset()
			m.waiting = true
			m.refreshChat()

			return m, m.sendCmd(text)
		}

	case answerMsg:
		m.waiting = false
		sender := msg.resp.Model
		if sender == "" {
			sender = "assistant"
		}
		entry := chatEntry{sender: sender, content: msg.resp.Content}
		if msg.resp.Metrics != nil && msg.resp.Metrics.ToolCalls > 0 {
			entry.content += footerStyle.Render(
				fmt.Sprintf("\n(%d tool calls, %d iterations)",
					msg.resp.Metrics.ToolCalls, msg.resp.Metrics.Iterations))
		}
		m.messages = append(m.messages, entry)
		m.refreshChat()
		return m, nil

	case errMsg:
		m.waiting = false
		m.messages = append(m.messages, chatEntry{
			sender:  "error",
			content: msg.err.Error(),
			isError: true,
		})
		m.refreshChat()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatW := m.width - 4
		chatH := m.height - 8

		if !m.ready {
			m.chat = viewport.New(chatW, chatH)
			m.ready = true
		} else {
			m.chat.Width = chatW
			m.chat.Height = chatH
		}
		m.refreshChat()
		m.input.SetWidth(chatW)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) refreshChat() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, e := range m.messages {
		switch {
		case e.isUser:
			b.WriteString(userStyle.Render(e.sender) + " > " + e.content + "\n\n")
		case e.isError:
			b.WriteString(errStyle.Render("✗ "+e.content) + "\n\n")
		default:
			b.WriteString(assistantStyle.Render(e.sender) + " > " + e.content + "\n\n")
		}
	}
	m.chat.SetContent(b.String())
	m.chat.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "Connecting to toolmesh..."
	}

	header := headerStyle.Render("toolmesh chat")
	status := ""
	if m.waiting {
		status = footerStyle.Render(" thinking...")
	}

	footer := footerStyle.Render("enter: send · esc: quit")
	if m.client.convID != "" {
		footer += footerStyle.Render(" · conversation " + m.client.convID)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header+status,
		chatBorder.Render(m.chat.View()),
		m.input.View(),
		footer,
	)
}

func main() {
	apiURL := flag.String("api", "http://localhost:8420", "toolmesh API URL")
	modelID := flag.String("model", "", "model to chat with (provider/model)")
	token := flag.String("token", "", "JWT bearer token")
	flag.Parse()

	c := &client{
		apiURL: strings.TrimRight(*apiURL, "/"),
		model:  *modelID,
		token:  *token,
		http:   &http.Client{Timeout: 300 * time.Second},
	}

	p := tea.NewProgram(newModel(c), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		os.Exit(1)
	}
}
