package game

import (
	"github.com/go-gl/mathgl/mgl64"

	"arenasim/physics"
)

// NoOwner 环境子弹（无归属玩家）
const NoOwner = "none"

// Bullet 子弹：被动刚体，碰到玩家即销毁
type Bullet struct {
	id    string
	owner string
	body  *physics.Body
	age   int64
}

// NewBullet 创建子弹（尚未注册到模拟）；owner 为空时视为 NoOwner
func NewBullet(id, owner string, pos, vel mgl64.Vec2, size float64) *Bullet {
	if owner == "" {
		owner = NoOwner
	}
	b := &Bullet{id: id, owner: owner}
	b.body = physics.NewBody(physics.BodyDef{
		Position: pos,
		Velocity: vel,
		Width:    size,
		Height:   size,
		Tag:      string(KindBullet),
		UserData: b,
	})
	return b
}

func (b *Bullet) ID() string          { return b.id }
func (b *Bullet) Body() *physics.Body { return b.body }
func (b *Bullet) Owner() string       { return b.owner }
func (b *Bullet) Age() int64          { return b.age }

func (b *Bullet) Update(sim *Simulation) {
	b.age++
	if ttl := sim.cfg.BulletTTL; ttl > 0 && b.age >= ttl {
		sim.DestroyGameObject(b.id)
	}
}

// OnCollision 碰到玩家：记录命中并在本帧结束前销毁
func (b *Bullet) OnCollision(sim *Simulation, other GameObject) {
	p, ok := other.(*Player)
	if !ok {
		return
	}
	if sim.scheduleDestroy(b.id) {
		sim.recordHit(b, p)
	}
}
