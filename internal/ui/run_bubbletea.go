package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	core "agcred/internal/core"
	"agcred/internal/logging"
	"agcred/internal/store"
	"agcred/internal/util"
	verinfo "agcred/internal/version"
)

type mode int

const (
	modeTable mode = iota
	modeNew
	modeEdit
	modeConfirmDel
)

type model struct {
	ctx       context.Context
	agentPath string
	cfg       *store.AgentConfig
	providers []string
	index     int

	m       mode
	provIn  textinput.Model
	idIn    textinput.Model
	formErr string

	// provider being edited or deleted
	target string

	reveal bool
	status string
	width  int
	height int
}

var (
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleSel       = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	styleMuted     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleKey       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleStatusOK  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleStatusErr = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func newModel(ctx context.Context, agentPath string) model {
	m := model{ctx: ctx, agentPath: agentPath, m: modeTable}
	m.provIn = textinput.New()
	m.provIn.Placeholder = "google"
	m.idIn = textinput.New()
	m.idIn.Placeholder = "integration id"
	m.reload()
	return m
}

func (m *model) reload() {
	m.cfg = store.Load(m.ctx, m.agentPath)
	m.providers = m.cfg.Providers()
	if m.index >= len(m.providers) {
		m.index = max(len(m.providers)-1, 0)
	}
	m.status = fmt.Sprintf("Loaded %d mapping(s)", len(m.providers))
	if err := m.cfg.LoadErr(); err != nil {
		m.status = fmt.Sprintf("load failed: %v (saving will replace %s)", err, m.cfg.Path())
	}
}

func (m *model) selected() (string, bool) {
	if len(m.providers) == 0 {
		return "", false
	}
	return m.providers[m.index], true
}

func (m *model) focusRow(provider string) {
	for i, p := range m.providers {
		if p == provider {
			m.index = i
			return
		}
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch m.m {
		case modeTable:
			return m.updateTableKey(msg)
		case modeNew, modeEdit:
			return m.updateFormKey(msg)
		case modeConfirmDel:
			return m.updateConfirmKey(msg)
		}
	}
	return m, nil
}

func (m model) updateTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.index > 0 {
			m.index--
		}
	case "down", "j":
		if m.index < len(m.providers)-1 {
			m.index++
		}
	case "r":
		m.reload()
	case "v":
		m.reveal = !m.reveal
	case "p":
		m.status = "Config file: " + m.cfg.Path()
	case "a":
		m.m = modeNew
		m.formErr = ""
		m.provIn.SetValue("")
		m.idIn.SetValue("")
		m.provIn.Focus()
		m.idIn.Blur()
	case "e", "enter":
		p, ok := m.selected()
		if !ok {
			m.status = "cannot edit: no mappings"
			return m, nil
		}
		id, _ := m.cfg.IntegrationID(p)
		m.m = modeEdit
		m.formErr = ""
		m.target = p
		m.idIn.SetValue(id)
		m.idIn.CursorEnd()
		m.idIn.Focus()
		m.provIn.Blur()
	case "d":
		p, ok := m.selected()
		if !ok {
			m.status = "cannot delete: no mappings"
			return m, nil
		}
		m.m = modeConfirmDel
		m.target = p
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m model) updateFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		if m.m == modeEdit {
			return m, nil
		}
		if m.provIn.Focused() {
			m.provIn.Blur()
			m.idIn.Focus()
		} else {
			m.idIn.Blur()
			m.provIn.Focus()
		}
		return m, nil
	case "enter":
		provider := m.target
		if m.m == modeNew {
			provider = m.provIn.Value()
			if err := core.ValidateProvider(provider); err != nil {
				m.formErr = err.Error()
				return m, nil
			}
			if m.cfg.HasMapping(provider) {
				m.formErr = "provider already mapped: " + provider + " (use edit)"
				return m, nil
			}
		}
		// ids are opaque and stored exactly as typed
		id := m.idIn.Value()
		m.cfg.SetIntegrationID(provider, id)
		if err := m.cfg.Save(m.ctx); err != nil {
			m.formErr = "save failed: " + err.Error()
			m.cfg = store.Load(m.ctx, m.agentPath)
			return m, nil
		}
		verb := "added"
		if m.m == modeEdit {
			verb = "updated"
		}
		m.m = modeTable
		m.reload()
		m.focusRow(provider)
		m.status = verb + " " + provider
		return m, nil
	case "esc", "ctrl+c":
		m.m = modeTable
		m.formErr = ""
		return m, nil
	}
	var cmd tea.Cmd
	if m.provIn.Focused() {
		m.provIn, cmd = m.provIn.Update(msg)
		return m, cmd
	}
	m.idIn, cmd = m.idIn.Update(msg)
	return m, cmd
}

func (m model) updateConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		p := m.target
		m.m = modeTable
		m.target = ""
		m.cfg.RemoveIntegration(p)
		if err := m.cfg.Save(m.ctx); err != nil {
			m.reload()
			m.status = "delete failed: " + err.Error()
			return m, nil
		}
		m.reload()
		m.status = "deleted " + p
	case "n", "N", "esc", "q":
		m.m = modeTable
		m.target = ""
	}
	return m, nil
}

func (m model) View() string {
	return m.renderTop() + "\n" + m.renderTable() + m.renderDetail() + "\n" + m.help()
}

func (m model) renderTop() string {
	name := verinfo.Name
	if name == "" {
		name = "agcred"
	}
	ver := verinfo.Version
	if ver == "" {
		ver = "dev"
	}
	st := styleStatusOK.Render(m.status)
	ls := strings.ToLower(m.status)
	if strings.Contains(ls, "failed") || strings.Contains(ls, "cannot") {
		st = styleStatusErr.Render(m.status)
	}
	return styleHeader.Render(name) + " " + styleMuted.Render(ver) + " | Status: " + st
}

func (m model) columnWidths() (wProv, wID int) {
	wProv, wID = 16, 40
	if m.width > 0 {
		// borders and padding take 7 columns
		if avail := m.width - wProv - 7; avail > 20 {
			wID = min(avail, 80)
		} else {
			wID = 20
		}
	}
	return
}

func (m model) displayID(id string) string {
	if m.reveal {
		return id
	}
	return util.Mask(id)
}

func (m model) renderTable() string {
	wProv, wID := m.columnWidths()
	border := func(left, mid, right string) string {
		return left + strings.Repeat("─", wProv+2) + mid + strings.Repeat("─", wID+2) + right + "\n"
	}
	var out strings.Builder
	out.WriteString(styleTitle.Render("Agent: "+m.agentPath) + "\n")
	out.WriteString(border("╭", "┬", "╮"))
	out.WriteString(fmt.Sprintf("│ %-*s │ %-*s │\n", wProv, "Provider", wID, "Integration ID"))
	out.WriteString(border("├", "┼", "┤"))
	if len(m.providers) == 0 {
		empty := styleMuted.Render(fmt.Sprintf("%-*s", wID, truncate("(no mappings)", wID)))
		out.WriteString(fmt.Sprintf("│ %-*s │ ", wProv, "") + empty + " │\n")
	}
	for i, p := range m.providers {
		id, _ := m.cfg.IntegrationID(p)
		provCell := fmt.Sprintf("%-*s", wProv, truncate(p, wProv))
		idCell := fmt.Sprintf("%-*s", wID, truncate(m.displayID(id), wID))
		if i == m.index {
			provCell = styleSel.Render(provCell)
			idCell = styleSel.Render(idCell)
		}
		out.WriteString("│ " + provCell + " │ " + idCell + " │\n")
	}
	out.WriteString(border("╰", "┴", "╯"))
	return out.String()
}

func (m model) renderDetail() string {
	var b strings.Builder
	switch m.m {
	case modeNew:
		b.WriteString("\nAdd mapping:\n")
		b.WriteString("Provider: " + m.provIn.View() + "\n")
		b.WriteString("ID:       " + m.idIn.View() + "\n")
	case modeEdit:
		b.WriteString("\nEdit mapping:\n")
		b.WriteString("Provider: " + m.target + "\n")
		b.WriteString("ID:       " + m.idIn.View() + "\n")
	case modeConfirmDel:
		b.WriteString("\nConfirm Delete:\n")
		b.WriteString(fmt.Sprintf("Provider: %s\n", m.target))
		b.WriteString("Press 'y' to confirm, 'n' or 'Esc' to cancel.\n")
	default:
		if p, ok := m.selected(); ok {
			id, _ := m.cfg.IntegrationID(p)
			b.WriteString(lipgloss.NewStyle().Bold(true).Render("\nDetails") + "\n")
			b.WriteString(fmt.Sprintf("Provider: %s\n", p))
			b.WriteString(fmt.Sprintf("ID: %s\n", m.displayID(id)))
		}
	}
	if m.formErr != "" && (m.m == modeNew || m.m == modeEdit) {
		b.WriteString(styleStatusErr.Render(m.formErr) + "\n")
	}
	return b.String()
}

func (m model) help() string {
	var b strings.Builder
	key := func(k, label string) {
		b.WriteString(styleKey.Render(k))
		b.WriteString(" " + label + "  ")
	}
	switch m.m {
	case modeNew:
		key("[Tab]", "Next")
		key("[Enter]", "Save")
		key("[Esc]", "Cancel")
	case modeEdit:
		key("[Enter]", "Save")
		key("[Esc]", "Cancel")
	case modeConfirmDel:
		key("[y]", "Yes")
		key("[n/Esc]", "Cancel")
	default:
		b.WriteString("Actions: ")
		key("[↑/↓]", "Move")
		key("[a]", "Add")
		key("[e]", "Edit")
		key("[d]", "Delete")
		key("[v]", "Reveal")
		key("[p]", "Path")
		key("[r]", "Reload")
		key("[q]", "Quit")
	}
	return strings.TrimRight(b.String(), " ")
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// Run starts the TUI for the agent directory at agentPath.
func Run(ctx context.Context, agentPath string) error {
	// Log lines on stderr would corrupt the alternate screen; errors surface in the status line.
	ctx = logging.NewContext(ctx, slog.New(slog.DiscardHandler))
	p := tea.NewProgram(newModel(ctx, agentPath), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
