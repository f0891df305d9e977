package moves

import (
	"math"
	"testing"
)

func TestDirectionVectorsAreUnitLength(t *testing.T) {
	for d := Direction(0); d < directionCount; d++ {
		v := d.Vector()
		if math.Abs(v.Len()-1) > 1e-12 {
			t.Fatalf("%s: length %f, want 1", d, v.Len())
		}
	}
}

func TestDiagonalComponents(t *testing.T) {
	v := DirUpLeft.Vector()
	want := 1 / math.Sqrt2
	if math.Abs(v.X()+want) > 1e-12 || math.Abs(v.Y()+want) > 1e-12 {
		t.Fatalf("up_left = %v, want (-%f, -%f)", v, want, want)
	}
	if v := DirDown.Vector(); v.X() != 0 || v.Y() != 1 {
		t.Fatalf("down = %v, want (0, 1)", v)
	}
}

func TestInvalidDirection(t *testing.T) {
	d := Direction(42)
	if d.Valid() {
		t.Fatalf("expected direction 42 to be invalid")
	}
	if v := d.Vector(); v.Len() != 0 {
		t.Fatalf("invalid direction vector = %v, want zero", v)
	}
}

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{
		"up":         DirUp,
		"Down":       DirDown,
		"up_left":    DirUpLeft,
		"upleft":     DirUpLeft,
		"down-right": DirDownRight,
	}
	for in, want := range cases {
		got, ok := ParseDirection(in)
		if !ok || got != want {
			t.Fatalf("ParseDirection(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseDirection("sideways"); ok {
		t.Fatalf("expected sideways to be rejected")
	}
}

func TestVelocity(t *testing.T) {
	u := NewPlayerMoveUpdate("p", 0, 0, true, DirRight, false)
	if v := u.Velocity(10); v.X() != 10 || v.Y() != 0 {
		t.Fatalf("velocity = %v, want (10, 0)", v)
	}
	stop := StopMove("p", 3)
	if v := stop.Velocity(10); v.Len() != 0 {
		t.Fatalf("stop velocity = %v, want zero", v)
	}
	if stop.Tick() != 3 || stop.Shooting() {
		t.Fatalf("unexpected stop move %+v", stop)
	}
}
