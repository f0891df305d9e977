package server

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"arenasim/game"
)

// StateMessage 出站状态消息。增量消息只包含变化的对象与被移除的 id。
type StateMessage struct {
	Type     string             `json:"type" msgpack:"type"`
	Frame    int64              `json:"frame" msgpack:"frame"`
	Checksum uint64             `json:"checksum,string" msgpack:"checksum"`
	Full     bool               `json:"full,omitempty" msgpack:"full,omitempty"`
	Objects  []game.ObjectState `json:"objects,omitempty" msgpack:"objects,omitempty"`
	Removed  []string           `json:"removed,omitempty" msgpack:"removed,omitempty"`
	Hits     []game.Hit         `json:"hits,omitempty" msgpack:"hits,omitempty"`
}

// encodedMessage 按需编码，同一 Tick 内每种编码只做一次
type encodedMessage struct {
	msg     *StateMessage
	jsonB   []byte
	msgpack []byte
}

func (e *encodedMessage) bytes(enc Encoding) ([]byte, error) {
	var err error
	switch enc {
	case EncodingMsgpack:
		if e.msgpack == nil {
			e.msgpack, err = msgpack.Marshal(e.msg)
		}
		return e.msgpack, err
	default:
		if e.jsonB == nil {
			e.jsonB, err = json.Marshal(e.msg)
		}
		return e.jsonB, err
	}
}

// buildDelta 与上次广播比较，生成增量与全量两种消息（Tick 线程）
func (r *Room) buildDelta() (delta, full *StateMessage) {
	frame, sum := r.sim.Frame(), r.sim.Checksum()
	states := r.sim.Snapshot()

	delta = &StateMessage{Type: "state", Frame: frame, Checksum: sum, Hits: r.pendingHits}
	full = &StateMessage{Type: "state", Frame: frame, Checksum: sum, Full: true, Objects: states, Hits: r.pendingHits}

	live := make(map[string]struct{}, len(states))
	for _, st := range states {
		live[st.ID] = struct{}{}
		if prev, ok := r.lastSent[st.ID]; !ok || prev != st {
			delta.Objects = append(delta.Objects, st)
			r.lastSent[st.ID] = st
		}
	}
	for id := range r.lastSent {
		if _, ok := live[id]; !ok {
			delta.Removed = append(delta.Removed, id)
			delete(r.lastSent, id)
		}
	}
	r.pendingHits = nil
	return delta, full
}

// BroadcastDelta 将本帧的状态变化广播给所有玩家；新加入的玩家收到全量状态
func (r *Room) BroadcastDelta() {
	delta, full := r.buildDelta()
	d := &encodedMessage{msg: delta}
	f := &encodedMessage{msg: full}

	type target struct {
		id   PlayerID
		conn *ClientConn
		full bool
	}
	r.mu.Lock()
	targets := make([]target, 0, len(r.players))
	for _, p := range r.players {
		if p.Conn == nil {
			continue
		}
		targets = append(targets, target{id: p.ID, conn: p.Conn, full: p.needsFull})
	}
	r.mu.Unlock()

	var delivered []target
	for _, t := range targets {
		m := d
		if t.full {
			m = f
		}
		b, err := m.bytes(t.conn.Encoding())
		if err != nil {
			Log.Errorf("encode state: room=%s frame=%d player=%s err=%v", r.ID, delta.Frame, t.id, err)
			continue
		}
		if t.conn.Enqueue(b) && t.full {
			delivered = append(delivered, t)
		}
	}
	if len(delivered) == 0 {
		return
	}
	// 全量状态确实进入发送队列后才清除标记，否则下一帧重发
	r.mu.Lock()
	for _, t := range delivered {
		if p, ok := r.players[t.id]; ok && p.Conn == t.conn {
			p.needsFull = false
		}
	}
	r.mu.Unlock()
}
