package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/five82/easel/internal/logging"
	"github.com/five82/easel/internal/prefs"
	"github.com/five82/easel/internal/state"
)

const defaultPollTick = 250 * time.Millisecond

// Options configures the UI.
type Options struct {
	Store *state.Store
	// Cancel aborts the batch when the user quits.
	Cancel context.CancelFunc
	// Done is closed once the batch runner returns.
	Done      <-chan struct{}
	PollTick  time.Duration
	ThemeName string
	PrefsPath string
	Logger    *zap.Logger
}

// Model is the root Bubble Tea model for the generate command.
type Model struct {
	store     *state.Store
	cancel    context.CancelFunc
	done      <-chan struct{}
	pollTick  time.Duration
	prefsPath string
	logger    *zap.Logger

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	bar     progress.Model
	theme   Theme

	width    int
	snapshot state.Snapshot
	finished bool
	aborted  bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = defaultPollTick
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Dracula"
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	logger := logging.OrNop(opts.Logger)

	m := Model{
		store:     opts.Store,
		cancel:    opts.Cancel,
		done:      opts.Done,
		pollTick:  pollTick,
		prefsPath: prefsPath,
		logger:    logger,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:     80,
	}
	if opts.Store != nil {
		m.snapshot = opts.Store.Snapshot()
	}
	m.applyTheme(GetTheme(themeName))
	return m
}

func (m *Model) applyTheme(t Theme) {
	m.theme = t
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent))
	m.bar = progress.New(
		progress.WithSolidFill(t.PhaseColors["running"]),
		progress.WithoutPercentage(),
		progress.WithWidth(barWidth(m.width)),
	)
	m.bar.EmptyColor = t.Faint
	styles := t.Styles()
	m.help.Styles.ShortKey = styles.AccentText
	m.help.Styles.ShortDesc = styles.MutedText
	m.help.Styles.FullKey = styles.AccentText
	m.help.Styles.FullDesc = styles.MutedText
}

// Aborted reports whether the user quit before the batch finished.
func (m Model) Aborted() bool {
	return m.aborted
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tickCmd(m.pollTick)}
	if m.done != nil {
		cmds = append(cmds, waitDoneCmd(m.done))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = barWidth(msg.Width)
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if m.finished {
			return m, nil
		}
		if m.store != nil {
			m.snapshot = m.store.Snapshot()
		}
		return m, tickCmd(m.pollTick)

	case batchDoneMsg:
		m.finished = true
		if m.store != nil {
			m.snapshot = m.store.Snapshot()
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if !m.finished {
			m.aborted = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.applyTheme(GetTheme(NextTheme(m.theme.Name)))
		m.savePrefs()
		return m, nil
	}
	return m, nil
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name}); err != nil {
		m.logger.Debug("save prefs failed", zap.Error(err))
	}
}

func barWidth(termWidth int) int {
	w := termWidth - 40
	if w < 10 {
		return 10
	}
	if w > 50 {
		return 50
	}
	return w
}

// Messages

type tickMsg time.Time

type batchDoneMsg struct{}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitDoneCmd(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return batchDoneMsg{}
	}
}
