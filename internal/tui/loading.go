// Package tui renders the terminal loading screen shown while level content
// is warmed up. It follows the bubbletea model/update/view loop.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NLarchive/circuit-sensei-sub001/internal/taskqueue"
)

const defaultRefreshInterval = 100 * time.Millisecond

// ErrInterrupted is returned when the user quits before loading finishes.
var ErrInterrupted = errors.New("tui: loading interrupted")

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Italic(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(1, 2)
)

// StatusSource reports scheduler state. *taskqueue.Queue satisfies it.
type StatusSource interface {
	Status() taskqueue.Status
}

type statusTickMsg time.Time

type loadDoneMsg struct {
	err error
}

// Loading is the loading screen model. It polls the queue on a tick and
// quits once the watched future settles.
type Loading struct {
	title    string
	source   StatusSource
	future   *taskqueue.Future
	interval time.Duration

	spinner spinner.Model
	status  taskqueue.Status
	done    bool
	err     error
	width   int
}

// LoadingOption customizes the loading screen.
type LoadingOption func(*Loading)

// WithTitle sets the heading shown above the queue status.
func WithTitle(title string) LoadingOption {
	return func(l *Loading) {
		if strings.TrimSpace(title) != "" {
			l.title = title
		}
	}
}

// WithRefreshInterval sets how often the queue status is polled.
func WithRefreshInterval(d time.Duration) LoadingOption {
	return func(l *Loading) {
		if d > 0 {
			l.interval = d
		}
	}
}

// NewLoading builds a loading screen that watches future.
func NewLoading(source StatusSource, future *taskqueue.Future, opts ...LoadingOption) *Loading {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	l := &Loading{
		title:    "Loading circuits",
		source:   source,
		future:   future,
		interval: defaultRefreshInterval,
		spinner:  s,
	}
	for _, opt := range opts {
		opt(l)
	}
	if source != nil {
		l.status = source.Status()
	}
	return l
}

// Init starts the spinner, the status poll and the future watcher.
func (l *Loading) Init() tea.Cmd {
	return tea.Batch(l.spinner.Tick, l.tick(), l.watch())
}

func (l *Loading) tick() tea.Cmd {
	return tea.Tick(l.interval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

func (l *Loading) watch() tea.Cmd {
	future := l.future
	if future == nil {
		return func() tea.Msg { return loadDoneMsg{} }
	}
	return func() tea.Msg {
		<-future.Done()
		_, err := future.Result()
		return loadDoneMsg{err: err}
	}
}

// Update handles messages.
func (l *Loading) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !l.done {
				l.err = ErrInterrupted
			}
			return l, tea.Quit
		}
	case tea.WindowSizeMsg:
		l.width = msg.Width
	case statusTickMsg:
		if l.done {
			return l, nil
		}
		if l.source != nil {
			l.status = l.source.Status()
		}
		return l, l.tick()
	case loadDoneMsg:
		l.done = true
		l.err = msg.err
		if l.source != nil {
			l.status = l.source.Status()
		}
		return l, tea.Quit
	case spinner.TickMsg:
		if l.done {
			return l, nil
		}
		var cmd tea.Cmd
		l.spinner, cmd = l.spinner.Update(msg)
		return l, cmd
	}
	return l, nil
}

// View renders the loading screen.
func (l *Loading) View() string {
	var b strings.Builder
	switch {
	case l.done && l.err != nil:
		b.WriteString(failStyle.Render("✗ " + l.title + " failed"))
	case l.done:
		b.WriteString(doneStyle.Render("✓ " + l.title))
	default:
		b.WriteString(l.spinner.View() + " " + titleStyle.Render(l.title+"…"))
	}
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("running  "))
	b.WriteString(renderCurrent(l.status))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("pending  "))
	b.WriteString(renderPending(l.status))
	if l.done && l.err != nil {
		b.WriteString("\n\n")
		b.WriteString(failStyle.Render(l.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("q to quit"))

	box := boxStyle
	if l.width > 0 {
		box = box.Width(min(l.width-2, 60))
	}
	return box.Render(b.String()) + "\n"
}

// Err returns the load error, ErrInterrupted, or nil.
func (l *Loading) Err() error { return l.err }

// Done reports whether the watched future settled.
func (l *Loading) Done() bool { return l.done }

func renderCurrent(status taskqueue.Status) string {
	if status.CurrentPriority == nil {
		return idleStyle.Render("idle")
	}
	return valueStyle.Render(fmt.Sprintf("priority %d", *status.CurrentPriority))
}

func renderPending(status taskqueue.Status) string {
	if status.PendingCount == 0 {
		return idleStyle.Render("none")
	}
	parts := make([]string, len(status.PendingPriorities))
	for i, p := range status.PendingPriorities {
		parts[i] = fmt.Sprint(p)
	}
	return valueStyle.Render(fmt.Sprintf("%d [%s]", status.PendingCount, strings.Join(parts, " ")))
}

// RunLoading shows the loading screen until future settles and returns the
// future's error.
func RunLoading(ctx context.Context, source StatusSource, future *taskqueue.Future, opts ...LoadingOption) error {
	model := NewLoading(source, future, opts...)
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("tui: run loading screen: %w", err)
	}
	if l, ok := final.(*Loading); ok {
		return l.Err()
	}
	return nil
}
