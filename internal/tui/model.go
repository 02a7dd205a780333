// Package tui is the interactive terminal browser for the comment listing.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/evcraddock/portfolio/internal/comment"
	"github.com/evcraddock/portfolio/internal/email"
	"github.com/evcraddock/portfolio/internal/pager"
)

// inputMode is what the text input is currently collecting.
type inputMode int

const (
	modeBrowse inputMode = iota
	modePageSize
	modeCompose
)

const (
	defaultWidth = 80
	textLimit    = 2000
)

// busyKeys start a pager operation and are ignored while one is running.
var busyKeys = map[string]bool{
	"n": true, "right": true, "p": true, "left": true,
	"o": true, "r": true, "d": true, "s": true, "c": true,
}

// pagerDoneMsg is sent when a pager operation finishes.
type pagerDoneMsg struct {
	op  string
	err error
}

// Author identifies who new comments are posted as.
type Author struct {
	Username string
	Email    string
}

// Model is the Bubble Tea model for browsing and posting comments.
type Model struct {
	ctx    context.Context
	pager  *pager.Pager
	author Author

	spinner spinner.Model
	input   textinput.Model
	mode    inputMode

	selected int
	loading  bool
	status   string
	err      error
	width    int
	quitting bool
}

// New returns a model driving p. Posting is disabled when author has no username.
func New(ctx context.Context, p *pager.Pager, author Author) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	ti := textinput.New()
	ti.CharLimit = textLimit

	return &Model{
		ctx:     ctx,
		pager:   p,
		author:  author,
		spinner: s,
		input:   ti,
		width:   defaultWidth,
	}
}

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, p *pager.Pager, author Author) error {
	prog := tea.NewProgram(New(ctx, p, author), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	return err
}

// Init loads the first page.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run("load", m.pager.LoadPage))
}

// run marks the model busy and performs fn off the update loop.
func (m *Model) run(op string, fn func(context.Context) error) tea.Cmd {
	m.loading = true
	m.err = nil
	ctx := m.ctx
	return func() tea.Msg {
		return pagerDoneMsg{op: op, err: fn(ctx)}
	}
}

// Update handles a message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case pagerDoneMsg:
		return m.handleDone(msg)
	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleDone(msg pagerDoneMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	m.err = msg.err
	m.status = ""
	if msg.err == nil {
		switch msg.op {
		case "post":
			m.status = "Comment posted."
		case "delete":
			m.status = "Comment deleted."
		}
	}

	n := len(m.pager.State().Comments)
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.pager.State()

	key := msg.String()
	if m.loading && busyKeys[key] {
		return m, nil
	}

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "n", "right":
		if !st.HasNext() {
			m.status = "Already on the last page."
			return m, nil
		}
		m.selected = 0
		return m, m.run("next", m.pager.Advance)
	case "p", "left":
		if !st.HasPrev() {
			m.status = "Already on the first page."
			return m, nil
		}
		m.selected = 0
		return m, m.run("prev", m.pager.Retreat)
	case "o":
		m.selected = 0
		order := st.Order.Toggle()
		return m, m.run("order", func(ctx context.Context) error {
			return m.pager.SetOrder(ctx, order)
		})
	case "r":
		m.selected = 0
		return m, m.run("reset", m.pager.Reset)
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(st.Comments)-1 {
			m.selected++
		}
	case "d":
		if m.selected < 0 || m.selected >= len(st.Comments) {
			return m, nil
		}
		id := st.Comments[m.selected].ID
		return m, m.run("delete", func(ctx context.Context) error {
			return m.pager.Delete(ctx, id)
		})
	case "s":
		return m, m.startInput(modePageSize, fmt.Sprintf("page size (now %d)", st.PageSize))
	case "c":
		if m.author.Username == "" {
			m.status = "Choose a username first with: pf username NAME"
			return m, nil
		}
		return m, m.startInput(modeCompose, "say something nice")
	}
	return m, nil
}

func (m *Model) startInput(mode inputMode, placeholder string) tea.Cmd {
	m.mode = mode
	m.status = ""
	m.input.Reset()
	m.input.Placeholder = placeholder
	return m.input.Focus()
}

func (m *Model) stopInput() {
	m.mode = modeBrowse
	m.input.Blur()
	m.input.Reset()
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.stopInput()
		return m, nil
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.stopInput()

		if mode == modePageSize {
			size := pager.ParsePageSize(value)
			m.selected = 0
			return m, m.run("size", func(ctx context.Context) error {
				return m.pager.SetPageSize(ctx, size)
			})
		}

		text := strings.TrimSpace(value)
		if text == "" {
			m.status = "Nothing to post."
			return m, nil
		}
		c := comment.NewComment{
			Username: m.author.Username,
			Email:    m.author.Email,
			Text:     text,
		}
		m.selected = 0
		return m, m.run("post", func(ctx context.Context) error {
			_, err := m.pager.Submit(ctx, c)
			return err
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the current page.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	st := m.pager.State()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Comments"))
	b.WriteString("  ")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("page %d · %s first · %d per page", st.PageNum+1, st.Order, st.PageSize)))
	if m.loading {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	if len(st.Comments) == 0 {
		b.WriteString(mutedStyle.Render("No comments yet."))
		b.WriteString("\n")
	}
	for i, c := range st.Comments {
		b.WriteString(m.renderComment(c, i == m.selected))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.mode != modeBrowse {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("enter: confirm · esc: cancel"))
		return b.String()
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(m.helpLine(st)))
	return b.String()
}

func (m *Model) renderComment(c *comment.Comment, selected bool) string {
	header := authorStyle.Render(c.Username) + "  " + mutedStyle.Render(email.FormatTimestamp(c.Timestamp))
	body := header + "\n" + c.Text

	style := itemStyle
	if selected {
		style = selectedStyle
	}
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(body)
}

func (m *Model) helpLine(st pager.State) string {
	var keys []string
	if st.HasNext() {
		keys = append(keys, "n: next")
	}
	if st.HasPrev() {
		keys = append(keys, "p: prev")
	}
	keys = append(keys, "o: "+string(st.Order.Toggle())+" first", "s: page size")
	if m.author.Username != "" {
		keys = append(keys, "c: comment")
	}
	if len(st.Comments) > 0 {
		keys = append(keys, "d: delete")
	}
	keys = append(keys, "r: reload", "q: quit")
	return strings.Join(keys, " · ")
}
