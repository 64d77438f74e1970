package cli

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// MemberListModel - Interactive workspace member selection
// =============================================================================

// MemberListModel is the bubbletea model for picking the workspace member to
// build when the workspace has no root package.
type MemberListModel struct {
	Members  []string
	Cursor   int
	Selected string
	Height   int
	Offset   int
}

// NewMemberListModel creates a new member list model.
func NewMemberListModel(members []string) MemberListModel {
	return MemberListModel{Members: members, Height: 15}
}

func (m MemberListModel) Init() tea.Cmd {
	return nil
}

func (m MemberListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Members)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Members) > 0 {
				m.Selected = m.Members[m.Cursor]
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m MemberListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Workspace Member"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Members))
	for i := m.Offset; i < end; i++ {
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render("▸ " + m.Members[i]))
		} else {
			b.WriteString(listNormalStyle.Render("  " + m.Members[i]))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Members))))
	return b.String()
}

// pickMember asks the user for a workspace member. An empty name means the
// user quit without choosing.
func pickMember(members []string) (string, error) {
	final, err := tea.NewProgram(NewMemberListModel(members), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", fmt.Errorf("member picker: %w", err)
	}
	return final.(MemberListModel).Selected, nil
}
