package score

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMax(t *testing.T) {
	a := Map{"x": 0.2, "y": 0.9}
	b := Map{"x": 0.5, "z": 0.1}
	got := Max(a, b)
	if !almostEqual(got["x"], 0.5) {
		t.Errorf("x = %v, want 0.5", got["x"])
	}
	if !almostEqual(got["y"], 0.9) {
		t.Errorf("y = %v, want 0.9", got["y"])
	}
	if !almostEqual(got["z"], 0.1) {
		t.Errorf("z = %v, want 0.1", got["z"])
	}
}

func TestMultiplyIntersects(t *testing.T) {
	a := Map{"x": 0.5, "y": 0.8}
	b := Map{"x": 0.5}
	got := Multiply(a, b)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if !almostEqual(got["x"], 0.25) {
		t.Errorf("x = %v, want 0.25", got["x"])
	}
}

func TestMultiplyEmpty(t *testing.T) {
	if got := Multiply(); len(got) != 0 {
		t.Errorf("Multiply() = %v, want empty", got)
	}
}

func TestProject(t *testing.T) {
	m := Map{"x": 0.5, "y": 0.8}
	got := m.Project(map[string]struct{}{"y": {}, "z": {}})
	if len(got) != 1 || !almostEqual(got["y"], 0.8) {
		t.Errorf("Project = %v, want {y:0.8}", got)
	}
}

func TestRemoveLowValues(t *testing.T) {
	m := Map{"a": 1.0, "b": 0.3, "c": 0.1}
	got := m.RemoveLowValues(0.2, 0.01)
	if _, ok := got["c"]; ok {
		t.Errorf("c should be pruned below 0.2 * max")
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}

	// minValue floor applies when all values are tiny.
	tiny := Map{"a": 0.005, "b": 0.004}
	got = tiny.RemoveLowValues(0.2, 0.01)
	if len(got) != 0 {
		t.Errorf("tiny values should all fall below the 0.01 floor, got %v", got)
	}
}

func TestTopKeys(t *testing.T) {
	m := Map{"a": 0.2, "b": 0.9, "c": 0.9, "d": 0.5}
	got := m.TopKeys(3)
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TopKeys[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
