package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	r := NewRoom("test", DefaultRoomConfig())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func mustTick(t *testing.T, r *Room) {
	t.Helper()
	if err := r.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func recvState(t *testing.T, ch chan []byte) StateMessage {
	t.Helper()
	select {
	case b := <-ch:
		var m StateMessage
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		return m
	default:
		t.Fatalf("no state message queued")
	}
	return StateMessage{}
}

func TestRoomJoinAndMove(t *testing.T) {
	r := newTestRoom(t)
	r.JoinPlayer("alice", nil)
	mustTick(t, r)

	p, ok := r.sim.Player("alice")
	if !ok {
		t.Fatalf("player not created on tick")
	}
	start := p.Body().Position()

	if err := r.OnInput("alice", InputMessage{Type: "move", Tick: 1, Seq: 1, Moving: true, Direction: "down"}); err != nil {
		t.Fatalf("OnInput: %v", err)
	}
	mustTick(t, r)

	if r.Frame() != 2 {
		t.Fatalf("frame = %d, want 2", r.Frame())
	}
	d := p.Body().Position().Sub(start)
	want := p.Speed() / float64(r.queue.TickRate())
	if math.Abs(d.X()) > 1e-9 || math.Abs(d.Y()-want) > 1e-9 {
		t.Fatalf("displacement = %v, want (0,%v)", d, want)
	}
	if r.QueueSize() != 0 {
		t.Fatalf("queue size = %d, want 0", r.QueueSize())
	}
	if r.Checksum() != r.sim.Checksum() {
		t.Fatalf("checksum not published")
	}
}

func TestRoomRateLimit(t *testing.T) {
	r := newTestRoom(t)
	r.JoinPlayer("alice", nil)
	mustTick(t, r)

	limit := r.Settings().MaxInputsPerTick
	for i := 1; i <= limit+2; i++ {
		if err := r.OnInput("alice", InputMessage{Type: "move", Seq: int64(i), Moving: true, Direction: "up"}); err != nil {
			t.Fatalf("OnInput %d: %v", i, err)
		}
	}
	snap := r.Metrics().Snapshot()
	if snap["inputs_accepted"].(int64) != int64(limit) {
		t.Fatalf("accepted = %v, want %d", snap["inputs_accepted"], limit)
	}
	if snap["rate_limited"].(int64) != 2 {
		t.Fatalf("rate limited = %v, want 2", snap["rate_limited"])
	}

	// 下一 Tick 计数重置
	mustTick(t, r)
	if err := r.OnInput("alice", InputMessage{Type: "move", Seq: int64(limit + 3), Direction: "up"}); err != nil {
		t.Fatalf("OnInput: %v", err)
	}
	if got := r.Metrics().Snapshot()["inputs_accepted"].(int64); got != int64(limit+1) {
		t.Fatalf("accepted after reset = %d, want %d", got, limit+1)
	}
}

func TestRoomIgnoresOldSequence(t *testing.T) {
	r := newTestRoom(t)
	r.JoinPlayer("alice", nil)
	mustTick(t, r)

	_ = r.OnInput("alice", InputMessage{Type: "move", Seq: 5, Direction: "up"})
	_ = r.OnInput("alice", InputMessage{Type: "move", Seq: 5, Direction: "up"})
	_ = r.OnInput("alice", InputMessage{Type: "move", Seq: 4, Direction: "up"})

	if got := r.Metrics().Snapshot()["old_seq_ignored"].(int64); got != 2 {
		t.Fatalf("old seq ignored = %d, want 2", got)
	}
}

func TestRoomRejectsUnknownPlayerAndBadInput(t *testing.T) {
	r := newTestRoom(t)
	if err := r.OnInput("ghost", InputMessage{Type: "move", Direction: "up"}); !errors.Is(err, errUnknownPlayer) {
		t.Fatalf("want errUnknownPlayer, got %v", err)
	}
	if err := r.OnInput("ghost", InputMessage{Type: "ping"}); !errors.Is(err, errNotMove) {
		t.Fatalf("want errNotMove, got %v", err)
	}
	if got := r.Metrics().Snapshot()["invalid_inputs"].(int64); got != 2 {
		t.Fatalf("invalid inputs = %d, want 2", got)
	}
}

func TestRoomSimulatedDrop(t *testing.T) {
	r := newTestRoom(t)
	r.UpdateSettings(func(s *RoomSettings) { s.SimulateDropProb = 1 })
	r.JoinPlayer("alice", nil)
	mustTick(t, r)

	_ = r.OnInput("alice", InputMessage{Type: "move", Seq: 1, Moving: true, Direction: "left"})
	if r.QueueSize() != 0 {
		t.Fatalf("dropped input reached the queue")
	}
	if got := r.Metrics().Snapshot()["drops_simulated"].(int64); got != 1 {
		t.Fatalf("drops simulated = %d, want 1", got)
	}
}

func TestRoomLeaveRemovesPlayer(t *testing.T) {
	r := newTestRoom(t)
	r.JoinPlayer("alice", nil)
	mustTick(t, r)
	_ = r.OnInput("alice", InputMessage{Type: "move", Tick: 5, Seq: 1, Moving: true, Direction: "up"})

	r.RequestLeave("alice", nil)
	mustTick(t, r)

	if _, ok := r.sim.Player("alice"); ok {
		t.Fatalf("player still in simulation after leave")
	}
	if r.QueueSize() != 0 {
		t.Fatalf("queued moves survived leave: %d", r.QueueSize())
	}
}

func TestRoomStaleLeaveIgnoredAfterReconnect(t *testing.T) {
	r := newTestRoom(t)
	first := NewClientConn(nil, EncodingJSON)
	second := NewClientConn(nil, EncodingJSON)
	r.JoinPlayer("alice", first)
	mustTick(t, r)
	r.JoinPlayer("alice", second)
	// 旧连接的读协程退出
	r.RequestLeave("alice", first)
	mustTick(t, r)

	if _, ok := r.sim.Player("alice"); !ok {
		t.Fatalf("reconnected player removed by stale leave")
	}
}

func TestBroadcastFullThenDelta(t *testing.T) {
	r := newTestRoom(t)
	a := NewClientConn(nil, EncodingJSON)
	b := NewClientConn(nil, EncodingJSON)
	ach, bch := a.send, b.send

	r.JoinPlayer("a", a)
	mustTick(t, r)
	m := recvState(t, ach)
	if !m.Full || len(m.Objects) != 1 || m.Objects[0].ID != "a" {
		t.Fatalf("first message should be full with player a: %+v", m)
	}
	if m.Frame != 1 || m.Checksum != r.Checksum() {
		t.Fatalf("frame/checksum mismatch: %+v", m)
	}

	mustTick(t, r)
	m = recvState(t, ach)
	if m.Full || len(m.Objects) != 0 || len(m.Removed) != 0 {
		t.Fatalf("idle tick should send empty delta: %+v", m)
	}

	r.JoinPlayer("b", b)
	mustTick(t, r)
	if m = recvState(t, ach); m.Full || len(m.Objects) != 1 || m.Objects[0].ID != "b" {
		t.Fatalf("a should see b in delta: %+v", m)
	}
	if m = recvState(t, bch); !m.Full || len(m.Objects) != 2 {
		t.Fatalf("b should get full state: %+v", m)
	}

	r.RequestLeave("a", a)
	mustTick(t, r)
	m = recvState(t, bch)
	if len(m.Removed) != 1 || m.Removed[0] != "a" {
		t.Fatalf("b should see a removed: %+v", m)
	}
}

func TestBroadcastMsgpack(t *testing.T) {
	r := newTestRoom(t)
	c := NewClientConn(nil, EncodingMsgpack)
	ch := c.send
	r.JoinPlayer("a", c)
	mustTick(t, r)

	var m StateMessage
	select {
	case b := <-ch:
		if err := msgpack.Unmarshal(b, &m); err != nil {
			t.Fatalf("decode msgpack: %v", err)
		}
	default:
		t.Fatalf("no state message queued")
	}
	if !m.Full || m.Frame != 1 || len(m.Objects) != 1 {
		t.Fatalf("unexpected msgpack state: %+v", m)
	}
}

func TestRoomHaltStopsTicking(t *testing.T) {
	r := newTestRoom(t)
	r.halt(errors.New("boom"))
	if !r.Halted() {
		t.Fatalf("room not halted")
	}
	select {
	case <-r.stop:
	default:
		t.Fatalf("stop channel not closed")
	}
	// 重复停止安全
	r.Stop()
}

func TestHaltedRoomDoesNotBlockControlRequests(t *testing.T) {
	r := newTestRoom(t)
	c := NewClientConn(nil, EncodingJSON)
	r.JoinPlayer("alice", c)
	r.halt(errors.New("boom"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2*cap(r.ctrlChan); i++ {
			r.RequestLeave(PlayerID(fmt.Sprintf("p%d", i)), nil)
		}
		r.JoinPlayer("late", NewClientConn(nil, EncodingJSON))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("control requests blocked on a halted room")
	}

	r.mu.Lock()
	_, late := r.players["late"]
	r.mu.Unlock()
	if late {
		t.Fatalf("player registered on a halted room")
	}
	if c.Enqueue([]byte("x")) {
		t.Fatalf("connection left open after halt")
	}
}

func TestBroadcastKeepsFullStateWhenEncodingFails(t *testing.T) {
	r := newTestRoom(t)
	a := NewClientConn(nil, EncodingJSON)
	b := NewClientConn(nil, EncodingMsgpack)
	r.JoinPlayer("a", a)
	r.JoinPlayer("b", b)
	r.ProcessJoinsLeaves()

	// JSON 不能编码 NaN，msgpack 可以
	mustPlayerAngle := func(id string, v float64) {
		p, ok := r.sim.Player(id)
		if !ok {
			t.Fatalf("player %s missing", id)
		}
		p.SetAngle(v)
	}
	mustPlayerAngle("a", math.NaN())
	r.BroadcastDelta()

	select {
	case <-b.send:
	default:
		t.Fatalf("msgpack client skipped after another client's encode error")
	}
	r.mu.Lock()
	aFull, bFull := r.players["a"].needsFull, r.players["b"].needsFull
	r.mu.Unlock()
	if !aFull || bFull {
		t.Fatalf("needsFull a=%v b=%v, want a=true b=false", aFull, bFull)
	}

	mustPlayerAngle("a", 0)
	r.BroadcastDelta()
	if m := recvState(t, a.send); !m.Full {
		t.Fatalf("a should get the full state it missed: %+v", m)
	}
}

func TestClientConnCloseTwice(t *testing.T) {
	c := NewClientConn(nil, "")
	if c.Encoding() != EncodingJSON {
		t.Fatalf("default encoding = %q", c.Encoding())
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if c.Enqueue([]byte("late")) {
		t.Fatalf("enqueue succeeded on a closed connection")
	}
}
