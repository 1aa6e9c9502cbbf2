// Package tui is an interactive chat over an embedded document store.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragbench/internal/service"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	Converse(ctx context.Context, question string) (service.Turn, error)
}

type answerMsg struct {
	turn service.Turn
	err  error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx      context.Context
	chat     ChatPort
	title    string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	turns    []service.Turn
	status   string
	cursor   int
	waiting  bool
	ready    bool
}

// New creates a new TUI model. title is shown in the header, typically the
// llm and embedder under test.
func New(ctx context.Context, chat ChatPort, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, chat: chat, title: title, input: ti, viewport: vp, spinner: sp, status: "Ready. Ask about your documents."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.chat.Converse(m.ctx, q)
		return answerMsg{turn: turn, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 1                                    // header
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentTurn())
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.turns = append(m.turns, msg.turn)
		m.cursor = len(m.turns) - 1
		m.status = fmt.Sprintf("Answered %q", msg.turn.Question)
		m.viewport.SetContent(m.renderCurrentTurn())
		return m, nil
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.waiting = true
				m.input.Reset()
				m.status = "Thinking about " + fmt.Sprintf("%q", q)
				return m, tea.Batch(m.spinner.Tick, m.ask(q))
			}
		case "down":
			if len(m.turns) > 0 {
				m.cursor = (m.cursor + 1) % len(m.turns)
				m.viewport.SetContent(m.renderCurrentTurn())
				return m, nil
			}
		case "up":
			if len(m.turns) > 0 {
				m.cursor = (m.cursor - 1 + len(m.turns)) % len(m.turns)
				m.viewport.SetContent(m.renderCurrentTurn())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current turn.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("ragbench chat  " + m.title)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentTurn() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	t := m.turns[m.cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d/%d\n\n", m.cursor+1, len(m.turns))
	b.WriteString(labelStyle.Render("Q: ") + t.Question + "\n")
	if t.Standalone != "" && t.Standalone != t.Question {
		b.WriteString(dimStyle.Render("   as: "+t.Standalone) + "\n")
	}
	b.WriteString(labelStyle.Render("A: ") + t.Answer + "\n")
	for _, s := range t.SourcePages() {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Source document: %s, Pages used: [%s]", s.Document, strings.Join(s.Pages, ", "))) + "\n")
	}
	if len(t.Sources) > 0 {
		top := t.Sources[0]
		fmt.Fprintf(&b, "\nBest match  score=%.3f\n", top.Score)
		b.WriteString(highlightBestSentence(top.Chunk.Text, t.Standalone))
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
