package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// File log entry for the processed files list
type FileLogEntry struct {
	Name       string
	Success    bool
	Detections int
	Error      string
}

func (f FileLogEntry) FilterValue() string { return f.Name }
func (f FileLogEntry) Title() string       { return f.Name }
func (f FileLogEntry) Description() string {
	if !f.Success {
		return fmt.Sprintf("❌ %s", f.Error)
	}
	if f.Detections == 1 {
		return "✓ 1 detection"
	}
	return fmt.Sprintf("✓ %d detections", f.Detections)
}

// SessionModel shows one detection session: overall progress, the
// current status line and the files finished so far
type SessionModel struct {
	folder      string
	percent     float64
	status      string
	fileEntries []FileLogEntry
	failed      int

	overallProgress progress.Model
	fileList        list.Model

	width  int
	height int

	cancel     func()
	cancelling bool
	done       bool
	summary    string
	err        error

	Version string
}

// NewSessionModel creates the TUI for a session over folder. cancel is
// called when the user asks to stop.
func NewSessionModel(folder, version string, cancel func()) SessionModel {
	fileList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	fileList.Title = "Processed Files"
	fileList.SetShowHelp(false)

	return SessionModel{
		folder:          folder,
		status:          "Discovering media...",
		overallProgress: progress.New(progress.WithDefaultGradient()),
		fileList:        fileList,
		cancel:          cancel,
		Version:         version,
	}
}

// Err returns the session error delivered with SessionDoneMsg
func (m SessionModel) Err() error { return m.err }

// Entries returns the files finished so far
func (m SessionModel) Entries() []FileLogEntry { return m.fileEntries }

// Init implements tea.Model
func (m SessionModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.done || m.cancelling {
				return m, tea.Quit
			}
			m.cancelling = true
			m.status = "Cancelling after the current file..."
			if m.cancel != nil {
				m.cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.overallProgress.Width = max(msg.Width-30, 10)
		m.fileList.SetSize(msg.Width-4, msg.Height/2)

	case ProgressMsg:
		m.percent = min(max(msg.Percent, 0), 100)
		if msg.Message != "" && !m.cancelling {
			m.status = msg.Message
		}

	case FileCompletedMsg:
		entry := FileLogEntry{
			Name:       msg.Name,
			Success:    msg.Success,
			Detections: msg.Detections,
		}
		if !msg.Success {
			entry.Error = msg.Message
			m.failed++
		}

		m.fileEntries = append(m.fileEntries, entry)
		items := make([]list.Item, len(m.fileEntries))
		for i, entry := range m.fileEntries {
			items[i] = entry
		}
		m.fileList.SetItems(items)

	case SessionDoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model
func (m SessionModel) View() string {
	header := HeaderStyle.Render(fmt.Sprintf("WildlifeTagger %s", m.Version))
	folder := InfoStyle.Render(fmt.Sprintf("Folder: %s", m.folder))

	overallView := fmt.Sprintf("Overall Progress: %s (%d files, %d failed)",
		m.overallProgress.ViewAs(m.percent/100),
		len(m.fileEntries),
		m.failed)

	status := ProcessingStyle.Render(m.status)
	switch {
	case m.err != nil:
		status = ErrorStyle.Render(fmt.Sprintf("❌ %v", m.err))
	case m.done && m.failed > 0:
		status = WarningStyle.Render(m.summary)
	case m.done:
		status = SuccessStyle.Render(m.summary)
	}

	controls := "Controls: [q] Cancel"
	if m.cancelling || m.done {
		controls = "Controls: [q] Quit"
	}

	sections := []string{
		header,
		folder,
		overallView,
		status,
		m.fileList.View(),
		controls,
	}

	return strings.Join(sections, "\n\n")
}
