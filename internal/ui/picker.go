package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/teaxyz/teabase/internal/errors"
)

// Action is one entry in the pane menu.
type Action struct {
	ID          string
	Title       string
	Description string
	// State is shown next to the title, e.g. "on" or "installed".
	State string
}

// actionItem implements list.Item for the Bubbles list component.
type actionItem struct {
	action Action
}

func (i actionItem) Title() string {
	if i.action.State == "" {
		return i.action.Title
	}
	return i.action.Title + " " + MutedStyle().Render("("+i.action.State+")")
}

func (i actionItem) Description() string { return i.action.Description }

func (i actionItem) FilterValue() string {
	return strings.Join([]string{i.action.Title, i.action.ID}, " ")
}

// ActionPickerModel is a Bubble Tea model for choosing a pane action.
type ActionPickerModel struct {
	list     list.Model
	actions  []Action
	selected *Action
	quitting bool
}

type actionPickerKeyMap struct {
	Enter key.Binding
	Quit  key.Binding
}

var actionPickerKeys = actionPickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "run"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "quit"),
	),
}

// NewActionPickerModel creates a picker over actions with the given title.
func NewActionPickerModel(title string, actions []Action) ActionPickerModel {
	items := make([]list.Item, len(actions))
	for i, a := range actions {
		items[i] = actionItem{action: a}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderForeground(ColorSecondary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorMuted)

	l := list.New(items, delegate, 80, 20)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	return ActionPickerModel{list: l, actions: actions}
}

// Init implements tea.Model.
func (m ActionPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ActionPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, actionPickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(actionItem); ok {
				m.selected = &item.action
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, actionPickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m ActionPickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Selected returns the chosen action, or nil if the user quit.
func (m ActionPickerModel) Selected() *Action {
	return m.selected
}

// PickAction shows the picker on the given I/O and returns the chosen
// action. Returns nil when the user quits.
func PickAction(title string, actions []Action, output io.Writer, input io.Reader) (*Action, error) {
	if len(actions) == 0 {
		return nil, errors.New(errors.ErrConfig, "Nothing to pick from", "")
	}

	p := tea.NewProgram(
		NewActionPickerModel(title, actions),
		tea.WithOutput(output),
		tea.WithInput(input),
	)

	finalModel, err := p.Run()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Action picker failed", "Run the matching teabase subcommand directly instead.")
	}

	if m, ok := finalModel.(ActionPickerModel); ok {
		return m.Selected(), nil
	}
	return nil, nil
}
