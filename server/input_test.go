package server

import (
	"errors"
	"testing"

	"arenasim/moves"
)

func TestInputToUpdate(t *testing.T) {
	msg := InputMessage{Type: "move", Tick: 7, Seq: 3, Moving: true, Direction: "up_left", Shooting: true}
	u, err := msg.ToUpdate("alice", 2)
	if err != nil {
		t.Fatalf("ToUpdate: %v", err)
	}
	if u.PlayerID() != "alice" || u.Tick() != 7 || u.Sequence() != 3 {
		t.Fatalf("unexpected update: id=%s tick=%d seq=%d", u.PlayerID(), u.Tick(), u.Sequence())
	}
	if !u.Moving() || !u.Shooting() || u.Direction() != moves.DirUpLeft {
		t.Fatalf("unexpected flags: moving=%v shooting=%v dir=%v", u.Moving(), u.Shooting(), u.Direction())
	}
}

func TestInputStampsMissingTick(t *testing.T) {
	u, err := InputMessage{Type: "move", Moving: true, Direction: "down"}.ToUpdate("bob", 42)
	if err != nil {
		t.Fatalf("ToUpdate: %v", err)
	}
	if u.Tick() != 42 {
		t.Fatalf("tick = %d, want 42", u.Tick())
	}
}

func TestInputRejectsBadMessages(t *testing.T) {
	if _, err := (InputMessage{Type: "chat"}).ToUpdate("a", 0); !errors.Is(err, errNotMove) {
		t.Fatalf("want errNotMove, got %v", err)
	}
	if _, err := (InputMessage{Type: "move", Moving: true, Direction: "sideways"}).ToUpdate("a", 0); !errors.Is(err, errBadDirection) {
		t.Fatalf("want errBadDirection, got %v", err)
	}
	if _, err := (InputMessage{Type: "move", Moving: true}).ToUpdate("a", 0); !errors.Is(err, errBadDirection) {
		t.Fatalf("moving without direction: want errBadDirection, got %v", err)
	}
	// 停止移动时方向可以省略
	if _, err := (InputMessage{Type: "move"}).ToUpdate("a", 0); err != nil {
		t.Fatalf("stop without direction: %v", err)
	}
}
