package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

type categoryPickerModel struct {
	title      string
	categories []timeline.Category
	filtered   []int // indices into categories
	cursor     int
	filter     textinput.Model
	done       bool
	canceled   bool
}

// CategoryPickerResult holds the category the user chose.
type CategoryPickerResult struct {
	Category timeline.Category
	Canceled bool
}

// CategoryPickerApp wraps categoryPickerModel for standalone use with tea.NewProgram.
type CategoryPickerApp struct {
	picker categoryPickerModel
	result *CategoryPickerResult
}

// NewCategoryPickerApp offers every category, starting on current.
func NewCategoryPickerApp(title string, current timeline.Category) *CategoryPickerApp {
	return &CategoryPickerApp{
		picker: newCategoryPicker(title, current),
	}
}

// NewSlotPickerApp titles the picker after the slot being edited.
func NewSlotPickerApp(s store.Slot) *CategoryPickerApp {
	title := fmt.Sprintf("Recategorize slot %d (%s, %s)", s.ID, s.Start.Local().Format("Jan 2 15:04"), s.Category)
	return NewCategoryPickerApp(title, s.Category)
}

func (a *CategoryPickerApp) Init() tea.Cmd {
	return a.picker.Init()
}

func (a *CategoryPickerApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := a.picker.Update(msg)
	a.picker = m.(categoryPickerModel)

	if a.picker.done || a.picker.canceled {
		a.result = a.picker.Result()
		return a, tea.Quit
	}

	return a, cmd
}

func (a *CategoryPickerApp) View() string {
	return a.picker.View()
}

func (a *CategoryPickerApp) GetResult() *CategoryPickerResult {
	return a.result
}

func newCategoryPicker(title string, current timeline.Category) categoryPickerModel {
	ti := textinput.New()
	ti.Placeholder = "Filter categories..."
	ti.Focus()

	categories := timeline.Categories()
	filtered := make([]int, len(categories))
	cursor := 0
	for i, c := range categories {
		filtered[i] = i
		if c == current {
			cursor = i
		}
	}

	return categoryPickerModel{
		title:      title,
		categories: categories,
		filtered:   filtered,
		cursor:     cursor,
		filter:     ti,
	}
}

func (m categoryPickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m categoryPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.canceled = true
			return m, nil
		case "enter":
			if len(m.filtered) > 0 {
				m.done = true
			}
			return m, nil
		case "up", "ctrl+k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+j":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	prevFilter := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)

	// Re-filter on text change
	if m.filter.Value() != prevFilter {
		m.applyFilter()
	}

	return m, cmd
}

func (m *categoryPickerModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.filtered = m.filtered[:0]
	for i, c := range m.categories {
		if query == "" || strings.Contains(string(c), query) {
			m.filtered = append(m.filtered, i)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

func (m categoryPickerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(dimStyle.Render("  No categories match filter"))
		b.WriteString("\n")
	}
	for vi, idx := range m.filtered {
		c := m.categories[idx]
		cursor := "  "
		if vi == m.cursor {
			cursor = "> "
		}
		line := cursor + CategoryBadge(c)
		if vi == m.cursor {
			line = highlightStyle.Render(cursor) + CategoryBadge(c)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("\nType to filter • Up/Down: move • Enter: choose • Esc: cancel"))

	return b.String()
}

func (m categoryPickerModel) Result() *CategoryPickerResult {
	if m.canceled || len(m.filtered) == 0 {
		return &CategoryPickerResult{Canceled: true}
	}
	return &CategoryPickerResult{Category: m.categories[m.filtered[m.cursor]]}
}
