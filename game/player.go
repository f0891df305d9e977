package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"arenasim/moves"
	"arenasim/physics"
)

// Player 玩家实体。速度常量来自所属模拟的配置。
type Player struct {
	id    string
	body  *physics.Body
	speed float64
	size  float64

	move     moves.PlayerMoveUpdate
	lastShot int64
	hasShot  bool
}

// NewPlayer 在出生点创建玩家（尚未注册到模拟）
func NewPlayer(id string, spawn Spawn, speed, size float64) *Player {
	p := &Player{
		id:    id,
		speed: speed,
		size:  size,
		move:  moves.StopMove(id, 0),
	}
	p.body = physics.NewBody(physics.BodyDef{
		Position: spawn.Position,
		Angle:    spawn.Angle,
		Width:    size,
		Height:   size,
		Bounded:  true,
		Tag:      string(KindPlayer),
		UserData: p,
	})
	return p
}

func (p *Player) ID() string                       { return p.id }
func (p *Player) Body() *physics.Body              { return p.body }
func (p *Player) Speed() float64                   { return p.speed }
func (p *Player) Angle() float64                   { return p.body.Angle() }
func (p *Player) Direction() moves.Direction       { return p.move.Direction() }
func (p *Player) Moving() bool                     { return p.move.Moving() }
func (p *Player) Shooting() bool                   { return p.move.Shooting() }
func (p *Player) LastMove() moves.PlayerMoveUpdate { return p.move }

// SetAngle 设置朝向。移动本身不会改变朝向。
func (p *Player) SetAngle(a float64) { p.body.SetAngle(a) }

// Facing 朝向单位向量
func (p *Player) Facing() mgl64.Vec2 {
	a := p.body.Angle()
	return mgl64.Vec2{math.Cos(a), math.Sin(a)}
}

// ApplyMove 以移动意图直接设定线速度（覆盖而非累加）
func (p *Player) ApplyMove(u moves.PlayerMoveUpdate) {
	p.move = u
	p.body.SetLinearVelocity(u.Velocity(p.speed))
}

// Update 处理射击：冷却结束且本帧意图为射击时发射子弹
func (p *Player) Update(sim *Simulation) {
	if !p.move.Shooting() {
		return
	}
	frame := sim.Frame()
	if p.hasShot && frame-p.lastShot < sim.cfg.ShotCooldown {
		return
	}
	if err := sim.fire(p); err != nil {
		sim.log.Warn("fire failed", zapPlayer(p.id), zapErr(err))
		return
	}
	p.lastShot = frame
	p.hasShot = true
}

// OnCollision 玩家本身不受碰撞影响（伤害与计分由外部处理）
func (p *Player) OnCollision(*Simulation, GameObject) {}
