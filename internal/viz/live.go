package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/contactsim/internal/sim"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
)

type TickMsg time.Time

// WorldBuilder creates a fresh world, used on start and on reset.
type WorldBuilder func() (*sim.World, error)

// Model steps a world on every tick and draws a side view next to live
// solver statistics.
type Model struct {
	build     WorldBuilder
	world     *sim.World
	sceneName string
	dt        float64

	canvas  *Canvas
	view    View
	axis    int
	running bool
	err     error

	last           sim.Stats
	energyHistory  []float64
	penHistory     []float64
	contactHistory []float64
	showHelp       bool
}

// NewModel builds the first world. It fails if the builder does.
func NewModel(build WorldBuilder, sceneName string, dt float64) (Model, error) {
	w, err := build()
	if err != nil {
		return Model{}, err
	}
	m := Model{
		build:          build,
		world:          w,
		sceneName:      sceneName,
		dt:             dt,
		canvas:         NewCanvas(width, height),
		running:        true,
		energyHistory:  make([]float64, 0, historyCapacity),
		penHistory:     make([]float64, 0, historyCapacity),
		contactHistory: make([]float64, 0, historyCapacity),
	}
	m.view = FitView(w, m.canvas, m.axis)
	return m, nil
}

func (m Model) World() *sim.World { return m.world }
func (m Model) Err() error        { return m.err }

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "s", "n":
			m.running = false
			m.step()
		case "r":
			m.reset()
		case "v":
			m.axis = 1 - m.axis
			m.view = FitView(m.world, m.canvas, m.axis)
		case "f":
			m.view = FitView(m.world, m.canvas, m.axis)
		case "+", "=":
			m.view.Scale *= 1.25
		case "-", "_":
			m.view.Scale /= 1.25
		case "]":
			m.adjustIterations(1)
		case "[":
			m.adjustIterations(-1)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && m.err == nil {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) step() {
	st, err := m.world.Step(m.dt)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.last = st
	m.energyHistory = pushHistory(m.energyHistory, m.world.Particles().KineticEnergy())
	m.penHistory = pushHistory(m.penHistory, m.world.MaxPenetration())
	m.contactHistory = pushHistory(m.contactHistory, float64(st.Constraints))
}

func pushHistory(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

// adjustIterations changes the velocity iteration budget of the running
// world. The count never drops below one.
func (m *Model) adjustIterations(delta int) {
	s := m.world.Settings().Solver
	s.Iterations += delta
	if s.Iterations < 1 {
		s.Iterations = 1
	}
	if err := m.world.SetSolverSettings(s); err != nil {
		m.err = err
	}
}

// reset rebuilds the world, keeping the current solver settings.
func (m *Model) reset() {
	solver := m.world.Settings().Solver
	w, err := m.build()
	if err != nil {
		m.err = err
		return
	}
	if err := w.SetSolverSettings(solver); err != nil {
		m.err = err
		return
	}
	m.world = w
	m.err = nil
	m.last = sim.Stats{}
	m.energyHistory = m.energyHistory[:0]
	m.penHistory = m.penHistory[:0]
	m.contactHistory = m.contactHistory[:0]
	m.view = FitView(w, m.canvas, m.axis)
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return StatusError.Render("ERROR")
	case m.running:
		return StatusRunning.Render("RUNNING")
	default:
		return StatusPaused.Render("PAUSED")
	}
}

// View renders the TUI interface.
func (m Model) View() string {
	DrawWorld(m.canvas, m.world, m.view)
	canvasView := canvasStyle.Render(m.canvas.String())

	settings := m.world.Settings()
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.sceneName)) + "\n")
	s.WriteString(m.status() + "\n\n")
	if m.err != nil {
		s.WriteString(StatusError.Render(m.err.Error()) + "\n\n")
	}

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.world.Time()))
	row("Bodies", fmt.Sprintf("%d", m.world.Particles().Len()))
	row("Contacts", fmt.Sprintf("%d", m.last.Constraints))
	row("Swept", fmt.Sprintf("%d", m.last.Swept))
	row("Iterations", fmt.Sprintf("%d/%d", m.last.Iterations, settings.Solver.Iterations))
	row("Push-out", fmt.Sprintf("%d/%d", m.last.PushOutIterations, settings.Solver.PushOutIterations))

	pen := m.world.MaxPenetration()
	tol := settings.Collision.CullDistance
	s.WriteString(labelStyle.Render("Penetration") + PenetrationStyle(pen, tol).Render(fmt.Sprintf("%.5f", pen)) + "\n")

	s.WriteString("\n" + MetricLabel.Render("contacts ") + SparklineChart(m.contactHistory, 30) + "\n")
	s.WriteString(MetricLabel.Render("depth    ") + SparklineChart(m.penHistory, 30) + "\n")

	s.WriteString(helpStyle.Render("\n" + Separator(30) + "\nSP:Pause S:Step R:Reset Q:Quit\nV:View F:Fit +/-:Zoom\n[ ]:Iterations ?:Help"))
	statsView := statsStyle.Render(s.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume simulation  ║
║  S/N      - Single step              ║
║  R        - Rebuild the scene        ║
║  Q        - Quit                     ║
║  V        - Swap X/Y side view       ║
║  F        - Refit view               ║
║  +/-      - Zoom                     ║
║  [ ]      - Velocity iterations      ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}
