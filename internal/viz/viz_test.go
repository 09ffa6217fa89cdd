package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/particles"
	"github.com/san-kum/contactsim/internal/sim"
)

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)

	if !c.IsSet(0, 0) || !c.IsSet(3, 3) {
		t.Error("expected pixels to be set")
	}
	if c.IsSet(1, 0) {
		t.Error("unexpected pixel")
	}
	if got := c.String(); got != "⠁⢀\n" {
		t.Errorf("unexpected canvas %q", got)
	}
	c.Clear()
	if c.IsSet(0, 0) {
		t.Error("clear left a pixel set")
	}
}

func TestConvexHull(t *testing.T) {
	pts := []Point{{0, 0}, {2, 0}, {1, 1}, {2, 2}, {0, 2}, {1, 0}}
	hull := ConvexHull(pts)
	if len(hull) != 4 {
		t.Fatalf("expected 4 hull points, got %v", hull)
	}
	for _, p := range hull {
		if p == (Point{1, 1}) || p == (Point{1, 0}) {
			t.Errorf("interior or collinear point %v in hull", p)
		}
	}
}

func restingWorld(t *testing.T) (*sim.World, error) {
	t.Helper()
	store := particles.NewStore()
	store.NewStatic(geometry.NewPlane(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}), mgl64.Vec3{}, mgl64.QuatIdent())
	store.NewDynamic(geometry.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}), 1, mgl64.Vec3{0, 0, 0.5}, mgl64.QuatIdent())
	store.NewDynamic(geometry.NewSphere(0.5), 1, mgl64.Vec3{2, 0, 0.5}, mgl64.QuatIdent())
	return sim.NewWorld(store, sim.DefaultSettings())
}

func TestDrawWorldMarksGround(t *testing.T) {
	w, err := restingWorld(t)
	if err != nil {
		t.Fatal(err)
	}
	c := NewCanvas(40, 12)
	v := FitView(w, c, 0)
	DrawWorld(c, w, v)

	ground := v.Project(c, mgl64.Vec3{0, 0, 0})
	if !c.IsSet(c.PixelWidth()/2, round(ground.Y)) {
		t.Error("expected the ground line through the view centre")
	}
	top := v.Project(c, mgl64.Vec3{0, 0, 1})
	if !c.IsSet(round(top.X), round(top.Y)) {
		t.Error("expected the top edge of the box")
	}
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelKeys(t *testing.T) {
	m, err := NewModel(func() (*sim.World, error) { return restingWorld(t) }, "resting", 1.0/60)
	if err != nil {
		t.Fatal(err)
	}

	next, _ := m.Update(key("s"))
	m = next.(Model)
	if m.running {
		t.Error("single step should pause")
	}
	if m.World().StepCount() != 1 {
		t.Errorf("expected one step, got %d", m.World().StepCount())
	}

	next, _ = m.Update(key("]"))
	m = next.(Model)
	if got := m.World().Settings().Solver.Iterations; got != sim.DefaultSettings().Solver.Iterations+1 {
		t.Errorf("expected iterations to grow, got %d", got)
	}

	next, _ = m.Update(key("r"))
	m = next.(Model)
	if m.World().StepCount() != 0 {
		t.Error("reset should rebuild the world")
	}
	if got := m.World().Settings().Solver.Iterations; got != sim.DefaultSettings().Solver.Iterations+1 {
		t.Errorf("reset should keep solver settings, got %d iterations", got)
	}

	next, _ = m.Update(TickMsg{})
	m = next.(Model)
	if m.World().StepCount() != 0 {
		t.Error("paused model should not step on tick")
	}
	next, _ = m.Update(key(" "))
	m = next.(Model)
	next, _ = m.Update(TickMsg{})
	m = next.(Model)
	if m.World().StepCount() != 1 {
		t.Error("running model should step on tick")
	}

	if view := m.View(); !strings.Contains(view, "RESTING") {
		t.Error("view should show the scene name")
	}
}
