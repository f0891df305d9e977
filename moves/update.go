package moves

import "github.com/go-gl/mathgl/mgl64"

// PlayerMoveUpdate 单个玩家在某一 Tick 的移动意图（不可变）
type PlayerMoveUpdate struct {
	playerID  string
	tick      int64
	seq       int64
	moving    bool
	direction Direction
	shooting  bool
}

// NewPlayerMoveUpdate 构造一条移动记录
// tick: 该记录生效的帧；seq: 同一帧内多条记录的排序依据
func NewPlayerMoveUpdate(playerID string, tick, seq int64, moving bool, dir Direction, shooting bool) PlayerMoveUpdate {
	return PlayerMoveUpdate{
		playerID:  playerID,
		tick:      tick,
		seq:       seq,
		moving:    moving,
		direction: dir,
		shooting:  shooting,
	}
}

// StopMove 本帧无输入时使用的默认意图：停止、不射击
func StopMove(playerID string, tick int64) PlayerMoveUpdate {
	return PlayerMoveUpdate{playerID: playerID, tick: tick, direction: DirUp}
}

func (u PlayerMoveUpdate) PlayerID() string     { return u.playerID }
func (u PlayerMoveUpdate) Tick() int64          { return u.tick }
func (u PlayerMoveUpdate) Sequence() int64      { return u.seq }
func (u PlayerMoveUpdate) Moving() bool         { return u.moving }
func (u PlayerMoveUpdate) Direction() Direction { return u.direction }
func (u PlayerMoveUpdate) Shooting() bool       { return u.shooting }

// Velocity 按给定速度换算为线速度；未移动时为零向量
func (u PlayerMoveUpdate) Velocity(speed float64) mgl64.Vec2 {
	if !u.moving {
		return mgl64.Vec2{}
	}
	return u.direction.Vector().Mul(speed)
}

// before 队列内排序：tick 优先，其次 seq
func (u PlayerMoveUpdate) before(o PlayerMoveUpdate) bool {
	if u.tick != o.tick {
		return u.tick < o.tick
	}
	return u.seq < o.seq
}
