package export

import (
	"strings"
	"testing"

	"github.com/san-kum/contactsim/internal/viz"
)

func TestCanvasToSVG(t *testing.T) {
	c := viz.NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)

	svg := CanvasToSVG(c, 10)
	if n := strings.Count(svg, "<circle"); n != 2 {
		t.Errorf("expected 2 dots, got %d", n)
	}
	if !strings.Contains(svg, `cx="5.0" cy="5.0"`) || !strings.Contains(svg, `cx="35.0" cy="35.0"`) {
		t.Errorf("dots at wrong positions:\n%s", svg)
	}
	if CanvasToSVG(nil, 1) != "" {
		t.Error("expected empty output for nil canvas")
	}
}

func TestSeriesToSVG(t *testing.T) {
	if SeriesToSVG([]float64{1}, 0.1, 100, 50, "#fff") != "" {
		t.Error("expected empty output for a single value")
	}
	svg := SeriesToSVG([]float64{0, 1, 0}, 0.5, 120, 60, "#00ccff")
	if !strings.Contains(svg, `stroke="#00ccff"`) {
		t.Error("missing stroke color")
	}
	// x spans [-0.1, 1.1], y spans [-0.1, 1.1]; the first point is (0, 0).
	if !strings.Contains(svg, "d=\"M10.0,55.0") {
		t.Errorf("unexpected first point:\n%s", svg)
	}
	if strings.Count(svg, " L") != 2 {
		t.Errorf("expected 2 segments:\n%s", svg)
	}
}
