package main

// This file implements the interactive chat interface using bubbletea.

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"insightweaver/internal/kb"
	"insightweaver/internal/pipeline"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// sampleQuestions seed the welcome screen so a first-time user has
// somewhere to start.
var sampleQuestions = []string{
	"Which product category generates the most revenue?",
	"What is the on-time delivery rate by region?",
	"Which shipping mode has the highest average delay?",
	"What factors correlate with late deliveries?",
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle     = lipgloss.NewStyle().Faint(true)
	statusStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
)

type answerMsg struct {
	res *pipeline.Result
	err error
}

type chatModel struct {
	pipe      *pipeline.Pipeline
	retriever *kb.Retriever
	history   *pipeline.History

	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer

	transcript []string
	thinking   bool
	ready      bool
	width      int
}

func newChatModel() chatModel {
	pipe, retriever := buildPipeline()

	ti := textinput.New()
	ti.Placeholder = "Ask a question about the order data..."
	ti.Focus()
	ti.CharLimit = 500

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	m := chatModel{
		pipe:      pipe,
		retriever: retriever,
		history:   pipeline.NewHistory(),
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		renderer:  renderer,
	}
	m.transcript = append(m.transcript, m.welcome())
	return m
}

func (m chatModel) welcome() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("InsightWeaver"))
	sb.WriteString("\n")
	sb.WriteString(hintStyle.Render("Ask business questions about the supply chain order dataset."))
	sb.WriteString("\n\nTry one of these:\n")
	for _, q := range sampleQuestions {
		fmt.Fprintf(&sb, "  • %s\n", q)
	}
	sb.WriteString("\n")
	sb.WriteString(hintStyle.Render("Commands: /history  /export  /clear  /help  (Ctrl+C to quit)"))
	return sb.String()
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.retriever.Close()
			return m, tea.Quit

		case tea.KeyCtrlL:
			m.transcript = []string{m.welcome()}
			m.refreshViewport()
			return m, nil

		case tea.KeyEnter:
			if m.thinking {
				return m, nil
			}
			input := strings.TrimSpace(m.textinput.Value())
			if input == "" {
				return m, nil
			}
			m.textinput.Reset()
			if strings.HasPrefix(input, "/") {
				m.handleCommand(input)
				m.refreshViewport()
				return m, nil
			}
			m.transcript = append(m.transcript, questionStyle.Render("You: ")+input)
			m.thinking = true
			m.refreshViewport()
			return m, tea.Batch(m.spinner.Tick, m.answer(input))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		headerHeight := 1
		footerHeight := 3
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight
		m.textinput.Width = msg.Width - 4
		m.ready = true
		m.refreshViewport()

	case answerMsg:
		m.thinking = false
		if msg.err != nil {
			m.transcript = append(m.transcript, errorStyle.Render(fmt.Sprintf("Error: %v", msg.err)))
		} else {
			m.history.Append(msg.res)
			m.transcript = append(m.transcript, m.renderAnswer(msg.res))
		}
		m.refreshViewport()

	case spinner.TickMsg:
		if m.thinking {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}
	}

	m.textinput, tiCmd = m.textinput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *chatModel) answer(question string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.pipe.Answer(context.Background(), question)
		return answerMsg{res: res, err: err}
	}
}

func (m *chatModel) renderAnswer(res *pipeline.Result) string {
	body := fmt.Sprintf("**Results (%d rows)**\n\n%s\n\n%s\n",
		res.Stats.RowCount, res.Table.MarkdownPreview(10), res.Narrative)
	if m.renderer != nil {
		if out, err := m.renderer.Render(body); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return body
}

func (m *chatModel) handleCommand(input string) {
	switch strings.Fields(input)[0] {
	case "/history":
		entries := m.history.Entries()
		if len(entries) == 0 {
			m.transcript = append(m.transcript, hintStyle.Render("No questions answered yet."))
			return
		}
		var sb strings.Builder
		for i, e := range entries {
			fmt.Fprintf(&sb, "%d. %s (%d rows)\n", i+1, e.Question, e.Rows)
		}
		m.transcript = append(m.transcript, sb.String())

	case "/export":
		path := "weaver-session.md"
		if err := os.WriteFile(path, []byte(m.history.Export()), 0o644); err != nil {
			m.transcript = append(m.transcript, errorStyle.Render(fmt.Sprintf("Export failed: %v", err)))
			return
		}
		m.transcript = append(m.transcript, hintStyle.Render("Session exported to "+path))

	case "/clear":
		m.history.Clear()
		m.transcript = []string{m.welcome()}

	case "/help":
		m.transcript = append(m.transcript, m.welcome())

	default:
		m.transcript = append(m.transcript, hintStyle.Render("Unknown command: "+input))
	}
}

func (m *chatModel) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n\n"))
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := ""
	if m.thinking {
		status = statusStyle.Render(m.spinner.View() + " thinking...")
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		titleStyle.Render(" InsightWeaver"),
		m.viewport.View(),
		status,
		"> "+m.textinput.View())
}

func runChat(ctx context.Context) error {
	p := tea.NewProgram(newChatModel(), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run chat interface: %w", err)
	}
	return nil
}
