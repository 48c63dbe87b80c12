package viz

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const barWidth = 40

// ProgressMsg reports MCMC progress for one task.
type ProgressMsg struct {
	Index, Done, Total int
}

type doneMsg struct{}

type tickMsg time.Time

// Progress is a Bubble Tea model showing one bar per task.
type Progress struct {
	names       []string
	done, total []int
	frame       int
	finished    bool
	interrupted bool
	start       time.Time
	cancel      context.CancelFunc
}

func NewProgress(names []string) Progress {
	return Progress{
		names: names,
		done:  make([]int, len(names)),
		total: make([]int, len(names)),
		start: time.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Progress) Init() tea.Cmd { return tick() }

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		if msg.Index >= 0 && msg.Index < len(m.names) {
			m.done[msg.Index] = msg.Done
			m.total[msg.Index] = msg.Total
		}
	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.frame++
		return m, tick()
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.interrupted = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

// Fraction is the completed share of task i.
func (m Progress) Fraction(i int) float64 {
	if m.total[i] == 0 {
		return 0
	}
	return float64(m.done[i]) / float64(m.total[i])
}

func (m Progress) View() string {
	var b strings.Builder
	b.WriteString(Title.Render("sampling posteriors"))
	b.WriteString(Subtle.Render(fmt.Sprintf("  %s\n", time.Since(m.start).Round(time.Second))))

	width := 0
	for _, n := range m.names {
		width = max(width, len(n))
	}
	for i, name := range m.names {
		f := m.Fraction(i)
		mark := AnimatedSpinner(m.frame + i)
		if f >= 1 {
			mark = Good.Render("✓")
		} else if m.total[i] == 0 {
			mark = Subtle.Render("·")
		}
		fmt.Fprintf(&b, "%s %-*s %s %3.0f%%\n", mark, width, name, ProgressBar(f, barWidth), 100*f)
	}
	if m.interrupted {
		b.WriteString(Warn.Render("interrupted, waiting for the current generation\n"))
	}
	return b.String()
}

// RunProgress runs work while drawing progress to out. Pressing q or
// ctrl+c cancels the context passed to work; RunProgress always waits for
// work to return and returns its error.
func RunProgress(ctx context.Context, names []string, out io.Writer, in io.Reader, work func(ctx context.Context, report func(i, done, total int)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewProgress(names)
	m.cancel = cancel
	p := tea.NewProgram(m, tea.WithOutput(out), tea.WithInput(in))

	errc := make(chan error, 1)
	go func() {
		errc <- work(ctx, func(i, done, total int) {
			p.Send(ProgressMsg{Index: i, Done: done, Total: total})
		})
		p.Send(doneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errc
		return err
	}
	return <-errc
}
