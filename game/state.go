package game

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
)

// ObjectState 对象的广播快照
type ObjectState struct {
	ID    string     `json:"id" msgpack:"id"`
	Kind  ObjectKind `json:"kind" msgpack:"kind"`
	X     float64    `json:"x" msgpack:"x"`
	Y     float64    `json:"y" msgpack:"y"`
	VX    float64    `json:"vx" msgpack:"vx"`
	VY    float64    `json:"vy" msgpack:"vy"`
	Angle float64    `json:"angle" msgpack:"angle"`
	Owner string     `json:"owner,omitempty" msgpack:"owner,omitempty"`
}

// StateOf 生成单个对象的快照
func StateOf(obj GameObject) ObjectState {
	body := obj.Body()
	pos, vel := body.Position(), body.LinearVelocity()
	st := ObjectState{
		ID:    obj.ID(),
		Kind:  KindOf(obj),
		X:     pos.X(),
		Y:     pos.Y(),
		VX:    vel.X(),
		VY:    vel.Y(),
		Angle: body.Angle(),
	}
	if b, ok := obj.(*Bullet); ok {
		st.Owner = b.owner
	}
	return st
}

// Snapshot 按注册顺序返回所有存活对象的快照
func (s *Simulation) Snapshot() []ObjectState {
	out := make([]ObjectState, 0, s.objects.Len())
	for el := s.objects.Front(); el != nil; el = el.Next() {
		out = append(out, StateOf(el.Value))
	}
	return out
}

// Checksum 帧号与全部对象状态的哈希。相同输入序列应得到相同结果。
func (s *Simulation) Checksum() uint64 {
	h := xxh3.New()
	var buf [8]byte
	putInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}

	putInt(s.frame)
	for el := s.objects.Front(); el != nil; el = el.Next() {
		st := StateOf(el.Value)
		_, _ = h.Write([]byte(st.ID))
		_, _ = h.Write([]byte{0})
		putFloat(st.X)
		putFloat(st.Y)
		putFloat(st.VX)
		putFloat(st.VY)
		putFloat(st.Angle)
	}
	return h.Sum64()
}
