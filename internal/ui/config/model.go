package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusbourses/internal/keys"
	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/theme"
)

const probeTimeout = 10 * time.Second

// Mode is the current step of the configuration flow.
type Mode int

const (
	ModeForm Mode = iota
	ModeValidating
	ModeValidateResult
)

// SavedMsg is sent when the user accepts new settings. An empty Token
// means the stored token is kept.
type SavedMsg struct {
	Config model.AppConfig
	Token  string
}

// CancelMsg is sent when the user leaves without saving.
type CancelMsg struct{}

// ProbeFunc checks that a backend answers with the given settings.
type ProbeFunc func(ctx context.Context, cfg model.AppConfig, token string) error

type probeResultMsg struct {
	err error
}

// values is heap allocated so huh's bindings survive Model copies.
type values struct {
	baseURL  string
	scope    string
	interval string
	token    string
}

// Model is the Bubble Tea model for the backend settings form.
type Model struct {
	mode    Mode
	base    model.AppConfig
	vals    *values
	form    *huh.Form
	probe   ProbeFunc
	spinner spinner.Model
	err     error

	keys          *keys.KeyMap
	width, height int
}

// New creates a new configuration view model. probe may be nil.
func New(k *keys.KeyMap, probe ProbeFunc, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		probe:   probe,
		spinner: sp,
		keys:    k,
		width:   width,
		height:  height,
	}
}

// Start opens the form prefilled from cfg.
func (m *Model) Start(cfg model.AppConfig) tea.Cmd {
	m.mode = ModeForm
	m.base = cfg
	m.err = nil
	m.vals = &values{
		baseURL:  cfg.Backend.BaseURL,
		scope:    cfg.Backend.Scope,
		interval: strconv.Itoa(cfg.Sync.PollIntervalSec),
	}
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("API root, e.g. https://bourses.example.com/api").
				Placeholder("http://localhost:8080/api").
				Value(&m.vals.baseURL).
				Validate(validateURL),
			huh.NewSelect[string]().
				Title("Account").
				Options(
					huh.NewOption("Student", string(model.ScopeStudent)),
					huh.NewOption("Administrator", string(model.ScopeAdmin)),
				).
				Value(&m.vals.scope),
			huh.NewInput().
				Title("Refresh every (seconds)").
				Value(&m.vals.interval).
				Validate(validateInterval),
			huh.NewInput().
				Title("Access token").
				Description("Leave empty to keep the stored token").
				EchoMode(huh.EchoModePassword).
				Value(&m.vals.token),
		),
	).WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return max(min(m.width-4, 80), 20)
}

// Config returns the settings currently entered in the form.
func (m Model) Config() model.AppConfig {
	cfg := m.base
	if m.vals == nil {
		return cfg
	}
	cfg.Backend.BaseURL = strings.TrimSpace(m.vals.baseURL)
	cfg.Backend.Scope = m.vals.scope
	if n, err := strconv.Atoi(strings.TrimSpace(m.vals.interval)); err == nil {
		cfg.Sync.PollIntervalSec = n
	}
	return cfg
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case probeResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		m.mode = ModeValidateResult
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			if key.Matches(msg, m.keys.Back) {
				m.mode = ModeForm
				return m, nil
			}
			return m, nil
		case ModeValidateResult:
			return m.handleResultKeys(msg)
		}
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	return m.updateForm(msg)
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.startProbe()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

func (m Model) startProbe() (Model, tea.Cmd) {
	if m.probe == nil {
		return m, m.saved()
	}

	m.mode = ModeValidating
	probe, cfg, token := m.probe, m.Config(), m.vals.token
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		return probeResultMsg{err: probe(ctx, cfg, token)}
	})
}

func (m Model) handleResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m, m.saved()
	case "e":
		cmd := m.reopen()
		return m, cmd
	case "esc":
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, nil
}

// reopen rebuilds the form with the values entered so far.
func (m *Model) reopen() tea.Cmd {
	m.mode = ModeForm
	m.form = m.buildForm()
	return m.form.Init()
}

func (m Model) saved() tea.Cmd {
	msg := SavedMsg{Config: m.Config(), Token: m.vals.token}
	return func() tea.Msg { return msg }
}

// View renders the configuration UI based on the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case ModeValidating:
		return style.Render(fmt.Sprintf(
			"%s Testing connection...\n\nPress esc to go back.",
			m.spinner.View(),
		))

	case ModeValidateResult:
		var status string
		if m.err != nil {
			status = lipgloss.NewStyle().Foreground(theme.ColorRed).Render("✗ " + m.err.Error())
		} else {
			status = lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("✓ Connected")
		}
		hint := theme.HelpStyle.Render("enter save | e edit | esc cancel")
		return style.Render(status + "\n\n" + hint)

	default:
		if m.form == nil {
			return ""
		}
		return style.Render(m.form.View())
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validateInterval(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("interval must be a number of seconds")
	}
	if floor := int(model.MinPollInterval / time.Second); n < floor {
		return fmt.Errorf("interval must be at least %d seconds", floor)
	}
	return nil
}
